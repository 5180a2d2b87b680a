package service

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"pagerag/internal/domain"
	"pagerag/internal/embedding/tfidf"
	"pagerag/internal/vectorstore"
	"pagerag/internal/vectorstore/similarity"
)

// minScore is the score below which a vector hit is treated as no match.
const minScore = 1e-9

// Index is a built or loaded index of one source, ready to be queried.
type Index struct {
	name     string
	store    domain.VectorStore
	embedder domain.Embedder
	chunks   []domain.Chunk
	log      *zap.Logger
}

func newIndex(name string, store domain.VectorStore, emb domain.Embedder, chunks []domain.Chunk, log *zap.Logger) *Index {
	return &Index{name: name, store: store, embedder: emb, chunks: chunks, log: log.With(zap.String("index", name))}
}

func (ix *Index) Name() string { return ix.name }

// Len is the number of chunks in the index.
func (ix *Index) Len() int { return len(ix.chunks) }

// Close releases the underlying store.
func (ix *Index) Close() error { return vectorstore.Close(ix.store) }

// Query returns the topK chunks closest to query. When the query embeds to a
// zero vector or nothing scores above zero, chunks are ranked by token
// overlap instead.
func (ix *Index) Query(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		ix.log.Debug("query has no known terms, using lexical ranking")
		return ix.lexicalSearch(query, topK), nil
	}
	res, err := ix.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > minScore {
			return res, nil
		}
	}
	ix.log.Debug("no vector match, using lexical ranking")
	return ix.lexicalSearch(query, topK), nil
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func (ix *Index) lexicalSearch(query string, topK int) []domain.SearchResult {
	if topK <= 0 {
		topK = similarity.DefaultTopK
	}
	qset := tokenSet(query)
	results := make([]domain.SearchResult, len(ix.chunks))
	for i, ch := range ix.chunks {
		results[i] = domain.SearchResult{Chunk: ch, Score: ochiai(qset, tokenSet(ch.Text))}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

func tokenSet(text string) map[string]struct{} {
	tokens := tfidf.Tokenize(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
