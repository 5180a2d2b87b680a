// Package embedding selects the configured text embedder.
package embedding

import (
	"fmt"
	"time"

	"pagerag/internal/config"
	"pagerag/internal/credentials"
	"pagerag/internal/domain"
	"pagerag/internal/embedding/openai"
	"pagerag/internal/embedding/tfidf"
)

// New builds the embedder named by cfg.Type. API keys are resolved through
// creds only when a remote embedder is selected.
func New(cfg config.EmbedderConfig, creds *credentials.Resolver) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		keyEnv := oc.APIKeyEnv
		if keyEnv == "" {
			keyEnv = credentials.OpenAIKey
		}
		key, err := creds.Resolve("", keyEnv)
		if err != nil {
			return nil, err
		}
		return openai.NewClient(openai.Config{
			BaseURL: oc.BaseURL,
			APIKey:  key,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", domain.ErrBadSetting, cfg.Type)
	}
}
