package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pagerag/internal/answer"
	"pagerag/internal/chunker"
	"pagerag/internal/config"
	"pagerag/internal/credentials"
	"pagerag/internal/domain"
	"pagerag/internal/embedding/tfidf"
	"pagerag/internal/source"
	"pagerag/internal/summarizer"
	"pagerag/internal/vectorstore"
)

const wikiCorpus = "Deploys happen every Tuesday afternoon. " +
	"The billing service sends invoices monthly. " +
	"Restart the billing service with systemctl. " +
	"Holiday requests go through the people portal."

type stubAccumulator struct {
	corpus string
	err    error
	calls  *atomic.Int32
}

func (a stubAccumulator) Accumulate(_ context.Context, urls []string) (string, error) {
	if a.calls != nil {
		a.calls.Add(1)
	}
	if len(urls) == 0 {
		return "", domain.ErrInvalidConfiguration
	}
	return a.corpus, a.err
}

func opener(t *testing.T, cfg config.VectorStoreConfig) *vectorstore.Opener {
	t.Helper()
	r, err := credentials.NewResolver(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	return vectorstore.NewOpener(cfg, r)
}

func newService(t *testing.T, stores StoreOpener, corpora map[string]stubAccumulator) *RAGService {
	t.Helper()
	return NewRAGService(Deps{
		Corpus: func(src *source.Source) (Accumulator, error) {
			acc, ok := corpora[src.Name]
			if !ok {
				return nil, errors.New("no corpus for " + src.Name)
			}
			return acc, nil
		},
		// small chunks so each sentence is its own chunk
		Chunker:              chunker.NewSentenceChunker(50),
		Embedder:             func() (domain.Embedder, error) { return tfidf.NewEmbedder(), nil },
		Stores:               stores,
		Answerer:             answer.NewExtractive(summarizer.NewFrequencySummarizer(), 1),
		Log:                  zaptest.NewLogger(t),
		MaxConcurrentSources: 2,
	})
}

func wikiSource(name string) *source.Source {
	s := source.New(name, nil)
	s.Setup([]string{"https://wiki.example.com/display/OPS/Home"})
	return s
}

func TestIngestAndAsk(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, opener(t, config.VectorStoreConfig{Type: "memory"}), map[string]stubAccumulator{
		"wiki": {corpus: wikiCorpus},
	})

	ix, err := svc.Ingest(ctx, wikiSource("wiki"))
	require.NoError(t, err)
	assert.Equal(t, "wiki", ix.Name())
	assert.Equal(t, 4, ix.Len())

	res, err := ix.Query(ctx, "how do I restart billing", 2)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "Restart the billing service with systemctl.", res[0].Chunk.Text)
	assert.Equal(t, "wiki", res[0].Chunk.Source)

	ans, retrieved, err := svc.Ask(ctx, ix, "when do deploys happen", 1)
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.Equal(t, "Deploys happen every Tuesday afternoon.", ans.Text)
	assert.Equal(t, []string{"wiki"}, ans.Sources)
}

func TestIngest_Unconfigured(t *testing.T) {
	svc := newService(t, opener(t, config.VectorStoreConfig{Type: "memory"}), nil)
	_, err := svc.Ingest(context.Background(), source.New("empty", nil))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestIngest_FetchFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	stores := opener(t, config.VectorStoreConfig{Type: "memory"})
	corpora := map[string]stubAccumulator{"wiki": {corpus: wikiCorpus}}
	svc := newService(t, stores, corpora)
	_, err := svc.Ingest(ctx, wikiSource("wiki"))
	require.NoError(t, err)

	pfe := &domain.PageFetchError{URL: "https://wiki.example.com/x", ReadableURL: "https://wiki.example.com/x", Op: domain.OpFetch, Err: errors.New("timeout")}
	corpora["wiki"] = stubAccumulator{err: pfe}
	_, err = svc.Ingest(ctx, wikiSource("wiki"))
	assert.True(t, domain.IsTransportError(err))

	ix, err := svc.Load(ctx, "wiki")
	require.NoError(t, err)
	require.NotNil(t, ix)
	assert.Equal(t, 4, ix.Len())
}

func TestLoadOrIngest_ReusesPersistedIndex(t *testing.T) {
	ctx := context.Background()
	cfg := config.VectorStoreConfig{Type: "sqlite", SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "index.db")}}
	calls := &atomic.Int32{}
	corpora := map[string]stubAccumulator{"wiki": {corpus: wikiCorpus, calls: calls}}

	first, err := newService(t, opener(t, cfg), corpora).LoadOrIngest(ctx, wikiSource("wiki"), false)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, int32(1), calls.Load())

	// a fresh service, as on the next run of the program
	svc := newService(t, opener(t, cfg), corpora)
	second, err := svc.LoadOrIngest(ctx, wikiSource("wiki"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	assert.Equal(t, int32(1), calls.Load(), "stored index must be reused")
	assert.Equal(t, 4, second.Len())

	res, err := second.Query(ctx, "billing invoices", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "The billing service sends invoices monthly.", res[0].Chunk.Text)

	rebuilt, err := svc.LoadOrIngest(ctx, wikiSource("wiki"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rebuilt.Close() })
	assert.Equal(t, int32(2), calls.Load())
}

func TestIngestAll_IsolatesFailures(t *testing.T) {
	svc := newService(t, opener(t, config.VectorStoreConfig{Type: "memory"}), map[string]stubAccumulator{
		"wiki": {corpus: wikiCorpus},
		"docs": {err: errors.New("docs unreachable")},
	})
	broken := source.New("broken", nil)

	indexes, err := svc.IngestAll(context.Background(), []*source.Source{wikiSource("wiki"), wikiSource("docs"), broken}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs unreachable")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	require.Len(t, indexes, 1)
	assert.Equal(t, 4, indexes["wiki"].Len())
}

type zeroEmbedder struct{}

func (zeroEmbedder) Name() string { return "zero" }
func (zeroEmbedder) Prepare([]string) error { return nil }
func (zeroEmbedder) Dimension() int { return 2 }
func (zeroEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{0, 0}, nil
}

func TestQuery_LexicalFallback(t *testing.T) {
	chunks := chunker.NewSentenceChunker(50).Chunk("wiki", "wiki", wikiCorpus)
	store := &stubStore{}
	ix := newIndex("wiki", store, zeroEmbedder{}, chunks, zaptest.NewLogger(t))

	res, err := ix.Query(context.Background(), "portal holiday", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, strings.HasPrefix(res[0].Chunk.Text, "Holiday requests"))
	// both query terms out of five chunk terms
	assert.InDelta(t, 2/math.Sqrt(10), res[0].Score, 1e-9)
	assert.Zero(t, store.searches, "zero query vector must not hit the store")
}

func TestQuery_AllZeroScoresFallBack(t *testing.T) {
	chunks := chunker.NewSentenceChunker(50).Chunk("wiki", "wiki", wikiCorpus)
	store := &stubStore{results: []domain.SearchResult{{Chunk: chunks[0], Score: 0}}}
	ix := newIndex("wiki", store, constEmbedder{}, chunks, zaptest.NewLogger(t))

	res, err := ix.Query(context.Background(), "systemctl", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Restart the billing service with systemctl.", res[0].Chunk.Text)
	assert.Equal(t, 1, store.searches)
}

type constEmbedder struct{ zeroEmbedder }

func (constEmbedder) Embed(context.Context, string) ([]float64, error) { return []float64{1, 0}, nil }

type stubStore struct {
	results  []domain.SearchResult
	searches int
}

func (s *stubStore) Init(context.Context, int) error { return nil }
func (s *stubStore) Upsert(context.Context, []domain.Chunk, [][]float64) error { return nil }
func (s *stubStore) Clear(context.Context) error { return nil }
func (s *stubStore) Search(context.Context, []float64, int) ([]domain.SearchResult, error) {
	s.searches++
	return s.results, nil
}

func TestOchiai(t *testing.T) {
	a := tokenSet("billing invoices")
	assert.InDelta(t, 1.0, ochiai(a, tokenSet("invoices billing")), 1e-12)
	assert.InDelta(t, 1/2.0, ochiai(a, tokenSet("billing portal")), 1e-12)
	assert.Zero(t, ochiai(a, tokenSet("")))
}
