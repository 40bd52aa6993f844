package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	MemoryBackendLocal = "local"
	MemoryBackendRedis = "redis"
)

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider string
	Model    string
}

type ChunkingConfig struct {
	TargetWords     int
	OverlapSegments int
}

type Config struct {
	PostgresDSN   string
	RedisAddr     string
	MemoryBackend string
	CacheDir      string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	Embeddings EmbeddingsConfig
	LLM        LLMConfig
	Chunking   ChunkingConfig

	RetrieveK   int
	MemoryTurns int
}

func Load() Config {
	return Config{
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/tube-agent?sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		MemoryBackend: getEnv("MEMORY_BACKEND", MemoryBackendLocal),
		CacheDir:      getEnv("CACHE_DIR", defaultCacheDir()),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Chunking: ChunkingConfig{
			TargetWords:     getEnvInt("CHUNK_TARGET_WORDS", 400),
			OverlapSegments: getEnvInt("CHUNK_OVERLAP_SEGMENTS", 1),
		},
		RetrieveK:   getEnvInt("RETRIEVE_K", 4),
		MemoryTurns: getEnvInt("MEMORY_TURNS", 5),
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tube-agent"
	}
	return filepath.Join(home, ".tube-agent")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
