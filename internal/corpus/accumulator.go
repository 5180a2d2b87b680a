// Package corpus fetches a source's pages one at a time and concatenates
// their text.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pagerag/internal/domain"
	"pagerag/internal/fetch"
)

// PageFetcher retrieves raw page markup.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// TextExtractor turns markup into normalized text.
type TextExtractor interface {
	Extract(markup []byte, pageURL string) (string, error)
}

// Accumulator builds the corpus of one source.
type Accumulator struct {
	fetcher   PageFetcher
	extractor TextExtractor
	log       *zap.Logger
}

func NewAccumulator(fetcher PageFetcher, extractor TextExtractor, log *zap.Logger) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{fetcher: fetcher, extractor: extractor, log: log}
}

// Accumulate fetches and extracts urls in order and joins the texts with no
// separator. The first failing page aborts the run and nothing is returned.
func (a *Accumulator) Accumulate(ctx context.Context, urls []string) (string, error) {
	if len(urls) == 0 {
		return "", domain.ErrInvalidConfiguration
	}
	a.log.Info("extracting pages", zap.Int("count", len(urls)))

	var corpus strings.Builder
	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.log.Debug("extracting page", zap.Int("page", i+1), zap.Int("of", len(urls)),
			zap.String("url", pageURL))

		text, err := a.page(ctx, pageURL)
		if err != nil {
			a.log.Error("page failed, discarding corpus", zap.String("url", pageURL), zap.Error(err))
			return "", err
		}
		corpus.WriteString(text)
		a.log.Info("fetched page", zap.Int("fetched", i+1), zap.Int("of", len(urls)),
			zap.String("url", fetch.ReadableURL(pageURL)))
	}
	return corpus.String(), nil
}

func (a *Accumulator) page(ctx context.Context, pageURL string) (string, error) {
	markup, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var pfe *domain.PageFetchError
		if errors.As(err, &pfe) || errors.Is(err, domain.ErrHeadersNotConfigured) {
			return "", err
		}
		return "", &domain.PageFetchError{
			URL:         pageURL,
			ReadableURL: fetch.ReadableURL(pageURL),
			Op:          domain.OpFetch,
			Err:         err,
		}
	}
	text, err := a.extractor.Extract(markup, pageURL)
	if err != nil {
		return "", &domain.PageFetchError{
			URL:         pageURL,
			ReadableURL: fetch.ReadableURL(pageURL),
			Op:          domain.OpParse,
			Err:         fmt.Errorf("extract text: %w", err),
		}
	}
	return text, nil
}
