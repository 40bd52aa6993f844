package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fabfab/tube-agent/api"
	"github.com/fabfab/tube-agent/cache"
	"github.com/fabfab/tube-agent/chat"
	"github.com/fabfab/tube-agent/chunker"
	"github.com/fabfab/tube-agent/config"
	"github.com/fabfab/tube-agent/database"
	"github.com/fabfab/tube-agent/embeddings"
	"github.com/fabfab/tube-agent/index"
	"github.com/fabfab/tube-agent/ingestion"
	"github.com/fabfab/tube-agent/llm"
	"github.com/fabfab/tube-agent/memory"
	"github.com/fabfab/tube-agent/transcript"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "purge":
		purgeCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type app struct {
	ingest *ingestion.Service
	chat   *chat.Service
	close  func()
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	transcriptCache, err := cache.Open(cfg.CacheDir, logger)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	closers = append(closers, func() { transcriptCache.Close() })

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	var memoryStore memory.Store
	switch cfg.MemoryBackend {
	case config.MemoryBackendRedis:
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		closers = append(closers, func() { redisClient.Close() })
		memoryStore = memory.NewRedisStore(redisClient, cfg.MemoryTurns)
	default:
		memoryStore = memory.NewLocalStore(cfg.MemoryTurns)
	}

	indexManager := index.NewManager(index.NewPostgresStore(pool), logger)
	ingestSvc := ingestion.NewService(
		transcriptCache,
		transcript.NewYtdlpDownloader(filepath.Join(cfg.CacheDir, "audio")),
		transcript.NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		embedder,
		indexManager,
		chunker.Options{TargetWords: cfg.Chunking.TargetWords, OverlapSegments: cfg.Chunking.OverlapSegments},
		logger,
	)

	retriever := chat.NewRetriever(embedder, chat.NewPostgresVectorStore(pool))
	chatSvc := chat.NewService(retriever, memoryStore, llmClient, cfg.RetrieveK, logger)

	return &app{ingest: ingestSvc, chat: chatSvc, close: closeAll}, nil
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	url := flags.String("url", "", "youtube video url or id")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}
	if *url == "" && flags.NArg() > 0 {
		*url = flags.Arg(0)
	}
	if strings.TrimSpace(*url) == "" {
		logger.Fatal("ingest requires a video url (--url or positional)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close()

	result, err := a.ingest.IngestVideo(ctx, *url)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	switch result.Status {
	case index.StatusSkipped:
		fmt.Println("already indexed, skipped")
	default:
		fmt.Printf("ingested %d chunks\n", result.Chunks)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question about the indexed videos")
	session := flags.String("session", "cli", "conversation session id")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close()

	resp, err := a.chat.Ask(ctx, *session, *question)
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println()
		fmt.Println("Context offered to the model:")
		for idx, citation := range resp.Citations {
			fmt.Printf("%d. %s\n", idx+1, citation)
		}
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", ":8080", "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(a.ingest, a.chat, logger),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func purgeCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("purge", flag.ExitOnError)
	videoID := flags.String("video", "", "video id to remove from the index")
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse purge flags: %v", err)
	}
	if strings.TrimSpace(*videoID) == "" {
		logger.Fatal("purge requires --video")
	}

	if !*confirmed {
		fmt.Printf("This will remove all indexed chunks for %s. Continue? [y/N]: ", *videoID)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			logger.Println("purge aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("purge aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close()

	if err := a.ingest.Purge(ctx, *videoID); err != nil {
		logger.Fatalf("purge failed: %v", err)
	}
	logger.Printf("purged %s", *videoID)
}

func printUsage() {
	fmt.Println("Usage: tube-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Transcribe and index a YouTube video (--url)")
	fmt.Println("  ask      Ask a question about indexed videos (--question, --session)")
	fmt.Println("  serve    Run the HTTP API (--addr)")
	fmt.Println("  purge    Remove a video from the index (--video)")
}
