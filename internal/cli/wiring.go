package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pagerag/internal/answer"
	"pagerag/internal/chunker"
	"pagerag/internal/config"
	"pagerag/internal/corpus"
	"pagerag/internal/domain"
	"pagerag/internal/embedding"
	"pagerag/internal/extract"
	"pagerag/internal/fetch"
	"pagerag/internal/service"
	"pagerag/internal/source"
	"pagerag/internal/vectorstore"
)

func (a *app) service() (*service.RAGService, error) {
	var ch domain.Chunker
	switch a.cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(a.cfg.Chunker.MaxChunkSize)
	default:
		return nil, fmt.Errorf("%w: unknown chunker type %q", domain.ErrBadSetting, a.cfg.Chunker.Type)
	}
	ans, err := answer.New(a.cfg.Answerer, a.creds)
	if err != nil {
		return nil, err
	}
	// fail on a bad embedder setting now rather than after fetching
	if _, err := embedding.New(a.cfg.Embedder, a.creds); err != nil {
		return nil, err
	}

	return service.NewRAGService(service.Deps{
		Corpus:  a.corpusFor,
		Chunker: ch,
		Embedder: func() (domain.Embedder, error) {
			return embedding.New(a.cfg.Embedder, a.creds)
		},
		Stores:               vectorstore.NewOpener(a.cfg.VectorStore, a.creds),
		Answerer:             ans,
		Log:                  a.log,
		MaxConcurrentSources: a.cfg.MaxConcurrentSources,
	}), nil
}

func (a *app) fetcher(requireAuth bool) *fetch.Fetcher {
	return fetch.New(fetch.Config{
		Timeout:      time.Duration(a.cfg.Fetch.TimeoutSecs) * time.Second,
		Delay:        time.Duration(a.cfg.Fetch.DelayMS) * time.Millisecond,
		UserAgent:    a.cfg.Fetch.UserAgent,
		MaxBodyBytes: a.cfg.Fetch.MaxBodyBytes,
		RequireAuth:  requireAuth,
	})
}

// corpusFor builds the page pipeline of one source, resolving its token once.
func (a *app) corpusFor(src *source.Source) (service.Accumulator, error) {
	f := a.fetcher(src.RequireAuth)
	if src.RequireAuth {
		token, err := a.creds.Resolve(a.token, src.TokenName)
		if err != nil {
			return nil, err
		}
		f.ConfigureHeaders(token)
	}
	ex, err := extract.New(a.cfg.Extractor.Mode)
	if err != nil {
		return nil, err
	}
	return corpus.NewAccumulator(f, ex, a.log.With(zap.String("source", src.Name))), nil
}

func (a *app) discoverer() *source.Discoverer {
	client := a.fetcher(false).Client()
	var robots *source.RobotsFilter
	if a.cfg.Fetch.RespectRobots {
		robots = source.NewRobotsFilter(client, a.cfg.Fetch.UserAgent, a.log)
	}
	return source.NewDiscoverer(client, a.cfg.Fetch.UserAgent, a.cfg.Fetch.SitemapLimit, robots)
}

// sourceFromConfig sets up a source from its config entry. Web sources
// without explicit pages are discovered through their sitemap.
func (a *app) sourceFromConfig(ctx context.Context, sc config.SourceConfig) (*source.Source, error) {
	src := source.New(sc.Name, a.log)
	src.BaseURL = sc.BaseURL
	src.RequireAuth = sc.Auth
	src.TokenName = sc.TokenEnv

	pages := sc.Pages
	if len(pages) == 0 && sc.Kind == config.KindWeb && sc.BaseURL != "" {
		found, err := a.discoverer().Discover(ctx, sc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		pages = found
	}
	src.Setup(pages)
	return src, nil
}

// resolveSource accepts a configured source name or a website base URL.
func (a *app) resolveSource(ctx context.Context, ref string) (*source.Source, error) {
	if ref == "" {
		if len(a.cfg.Sources) != 1 {
			return nil, fmt.Errorf("%d sources configured, choose one with --source", len(a.cfg.Sources))
		}
		return a.sourceFromConfig(ctx, a.cfg.Sources[0])
	}
	if sc, ok := a.cfg.Source(ref); ok {
		return a.sourceFromConfig(ctx, sc)
	}
	name := source.NameFromURL(ref)
	if name == "" {
		return nil, fmt.Errorf("unknown source %q", ref)
	}
	return a.sourceFromConfig(ctx, config.SourceConfig{Name: name, Kind: config.KindWeb, BaseURL: ref})
}
