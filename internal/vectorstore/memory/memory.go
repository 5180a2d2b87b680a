package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pagerag/internal/domain"
	"pagerag/internal/vectorstore/similarity"
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrLengthMismatch   = errors.New("chunks and vectors length mismatch")
)

// Storage is an in-memory vector store using brute-force cosine similarity.
// Its contents live as long as the process.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), s.dimension)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return similarity.TopK(vector, s.chunks, s.vectors, topK), nil
}

// Load returns the chunks currently held, in insertion order.
func (s *Storage) Load(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	return nil
}
