package chat

// ChunkResult is one retrieved chunk with its relevance score and the
// citation metadata carried from ingestion.
type ChunkResult struct {
	ChunkID    string
	VideoID    string
	VideoTitle string
	Content    string
	StartTime  int
	URL        string
	Score      float64
}

// Response is a grounded answer. Citations lists a link for every chunk
// offered to the model as context, in relevance order, whether or not the
// answer text ended up citing it.
type Response struct {
	Answer    string
	Citations []string
}
