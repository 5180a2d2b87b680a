// Package answer turns retrieved chunks into an answer with cited sources.
package answer

import (
	"fmt"
	"time"

	"pagerag/internal/config"
	"pagerag/internal/credentials"
	"pagerag/internal/domain"
	"pagerag/internal/summarizer"
)

// New builds the answerer named by cfg.Type.
func New(cfg config.AnswererConfig, creds *credentials.Resolver) (domain.Answerer, error) {
	switch cfg.Type {
	case "", "extractive":
		return NewExtractive(summarizer.NewFrequencySummarizer(), cfg.MaxSentences), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIAnswererConfig{}
		}
		keyEnv := oc.APIKeyEnv
		if keyEnv == "" {
			keyEnv = credentials.OpenAIKey
		}
		key, err := creds.Resolve("", keyEnv)
		if err != nil {
			return nil, err
		}
		return NewOpenAI(OpenAIConfig{
			BaseURL:     oc.BaseURL,
			APIKey:      key,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown answerer type %q", domain.ErrBadSetting, cfg.Type)
	}
}
