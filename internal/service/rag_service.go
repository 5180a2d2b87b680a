// Package service ties the pipeline together: it turns a source into a
// searchable index and answers questions against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pagerag/internal/domain"
	"pagerag/internal/source"
	"pagerag/internal/vectorstore"
)

// Accumulator builds a source's corpus from its page URLs.
type Accumulator interface {
	Accumulate(ctx context.Context, urls []string) (string, error)
}

// StoreOpener opens the vector store of a named index.
type StoreOpener interface {
	Open(index string) (domain.VectorStore, error)
}

// Deps are the collaborators of RAGService. Corpus and Embedder are called
// once per source so that per-source credentials and corpus-bound embedders
// never leak between sources.
type Deps struct {
	Corpus               func(src *source.Source) (Accumulator, error)
	Chunker              domain.Chunker
	Embedder             func() (domain.Embedder, error)
	Stores               StoreOpener
	Answerer             domain.Answerer
	Log                  *zap.Logger
	MaxConcurrentSources int
}

type RAGService struct {
	corpus      func(src *source.Source) (Accumulator, error)
	chunker     domain.Chunker
	newEmbedder func() (domain.Embedder, error)
	stores      StoreOpener
	answerer    domain.Answerer
	log         *zap.Logger
	concurrency int
}

func NewRAGService(d Deps) *RAGService {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	concurrency := d.MaxConcurrentSources
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RAGService{
		corpus:      d.Corpus,
		chunker:     d.Chunker,
		newEmbedder: d.Embedder,
		stores:      d.Stores,
		answerer:    d.Answerer,
		log:         log,
		concurrency: concurrency,
	}
}

// Ingest fetches every page of src, chunks the corpus, embeds the chunks and
// replaces the source's index with them.
func (s *RAGService) Ingest(ctx context.Context, src *source.Source) (*Index, error) {
	if !src.Configured() {
		return nil, fmt.Errorf("source %s: %w", src.Name, domain.ErrInvalidConfiguration)
	}
	name := src.IndexName()
	log := s.log.With(zap.String("source", src.Name), zap.String("index", name))

	acc, err := s.corpus(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	corpus, err := acc.Accumulate(ctx, src.URLs())
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}

	label := src.BaseURL
	if label == "" {
		label = src.Name
	}
	chunks := s.chunker.Chunk(name, label, corpus)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("source %s: corpus produced no chunks", src.Name)
	}
	log.Info("chunked corpus", zap.Int("chars", len(corpus)), zap.Int("chunks", len(chunks)))

	emb, err := s.newEmbedder()
	if err != nil {
		return nil, err
	}
	if err := emb.Prepare(texts(chunks)); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}

	vectors := make([][]float64, len(chunks))
	for i := range chunks {
		vec, err := emb.Embed(ctx, chunks[i].Text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", chunks[i].ChunkID, err)
		}
		vectors[i] = vec
	}
	dim := emb.Dimension()
	if dim == 0 {
		dim = len(vectors[0])
	}

	store, err := s.stores.Open(name)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ctx, store, dim, chunks, vectors); err != nil {
		_ = vectorstore.Close(store)
		return nil, fmt.Errorf("store index %s: %w", name, err)
	}
	log.Info("index built", zap.String("embedder", emb.Name()), zap.Int("dimension", dim))
	return newIndex(name, store, emb, chunks, s.log), nil
}

func (s *RAGService) replace(ctx context.Context, store domain.VectorStore, dim int, chunks []domain.Chunk, vectors [][]float64) error {
	if err := store.Clear(ctx); err != nil {
		return err
	}
	if err := store.Init(ctx, dim); err != nil {
		return err
	}
	return store.Upsert(ctx, chunks, vectors)
}

// LoadOrIngest reuses the stored index of src when there is one and rebuild
// is false. Otherwise it ingests.
func (s *RAGService) LoadOrIngest(ctx context.Context, src *source.Source, rebuild bool) (*Index, error) {
	name := src.IndexName()
	if !rebuild {
		ix, err := s.load(ctx, name)
		if err != nil {
			return nil, err
		}
		if ix != nil {
			s.log.Info("index found", zap.String("index", name), zap.Int("chunks", ix.Len()))
			return ix, nil
		}
	}
	return s.Ingest(ctx, src)
}

// Load opens an existing index by name. It returns nil when the store holds
// nothing under name or cannot restore indexes at all.
func (s *RAGService) Load(ctx context.Context, name string) (*Index, error) {
	return s.load(ctx, name)
}

func (s *RAGService) load(ctx context.Context, name string) (*Index, error) {
	store, err := s.stores.Open(name)
	if err != nil {
		return nil, err
	}
	loader, ok := store.(vectorstore.Loader)
	if !ok {
		return nil, vectorstore.Close(store)
	}
	chunks, err := loader.Load(ctx)
	if err != nil {
		_ = vectorstore.Close(store)
		return nil, fmt.Errorf("load index %s: %w", name, err)
	}
	if len(chunks) == 0 {
		return nil, vectorstore.Close(store)
	}

	emb, err := s.newEmbedder()
	if err != nil {
		_ = vectorstore.Close(store)
		return nil, err
	}
	if err := emb.Prepare(texts(chunks)); err != nil {
		_ = vectorstore.Close(store)
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}
	return newIndex(name, store, emb, chunks, s.log), nil
}

// Ask retrieves the topK chunks for query from ix and answers from them. The
// retrieved chunks are returned alongside the answer.
func (s *RAGService) Ask(ctx context.Context, ix *Index, query string, topK int) (domain.Answer, []domain.SearchResult, error) {
	results, err := ix.Query(ctx, query, topK)
	if err != nil {
		return domain.Answer{}, nil, err
	}
	ans, err := s.answerer.Answer(ctx, query, results)
	if err != nil {
		return domain.Answer{}, nil, fmt.Errorf("answer: %w", err)
	}
	return ans, results, nil
}

// IngestAll loads or builds the index of every source. Sources run
// concurrently up to the configured limit and fail independently: the
// returned map holds every index that succeeded and the error joins one
// failure per source.
func (s *RAGService) IngestAll(ctx context.Context, srcs []*source.Source, rebuild bool) (map[string]*Index, error) {
	var (
		mu      sync.Mutex
		indexes = make(map[string]*Index, len(srcs))
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, src := range srcs {
		src := src
		g.Go(func() error {
			ix, err := s.LoadOrIngest(ctx, src, rebuild)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Error("source failed", zap.String("source", src.Name), zap.Error(err))
				errs = append(errs, err)
				return nil
			}
			indexes[src.Name] = ix
			return nil
		})
	}
	_ = g.Wait()
	return indexes, errors.Join(errs...)
}

func texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
