package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagerag/internal/domain"
)

const (
	DefaultTimeout = 15 * time.Second
	scrollPageSize = 256
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrLengthMismatch   = errors.New("chunks and vectors length mismatch")
)

// Storage is a minimal REST client to Qdrant. Each index is one collection
// using cosine distance.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection. An existing collection is left as is.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if status == http.StatusConflict {
		return nil
	}
	return err
}

type payload struct {
	SourceID string `json:"source_id"`
	ChunkID  string `json:"chunk_id"`
	Source   string `json:"source"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
}

func (p payload) chunk() domain.Chunk {
	return domain.Chunk{SourceID: p.SourceID, ChunkID: p.ChunkID, Source: p.Source, Index: p.Index, Text: p.Text}
}

// Upsert stores each chunk under its position as the point ID, which is
// unique within the collection.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     c.Index,
			"vector": vectors[i],
			"payload": payload{
				SourceID: c.SourceID,
				ChunkID:  c.ChunkID,
				Source:   c.Source,
				Index:    c.Index,
				Text:     c.Text,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return results, nil
}

// Load scrolls through the whole collection. A missing collection loads as
// empty.
func (s *Storage) Load(ctx context.Context) ([]domain.Chunk, error) {
	var (
		chunks []domain.Chunk
		offset any
	)
	for {
		req := map[string]any{"limit": scrollPageSize, "with_payload": true, "with_vector": false}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload payload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if status == http.StatusNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			chunks = append(chunks, p.Payload.chunk())
		}
		if resp.Result.NextPageOffset == nil {
			return chunks, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
