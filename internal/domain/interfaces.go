package domain

import "context"

// Chunk is a bounded, sentence-aligned slice of a source corpus used for indexing.
type Chunk struct {
	SourceID string
	ChunkID  string
	Source   string
	Text     string
	Index    int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is the reply to a question together with the sources it cites.
type Answer struct {
	Text    string
	Sources []string
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits a source corpus into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(sourceID, source, corpus string) []Chunk
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Answerer turns a question and its retrieved chunks into an answer with sources.
type Answerer interface {
	Answer(ctx context.Context, query string, results []SearchResult) (Answer, error)
}
