package answer

import (
	"context"
	"strings"

	"pagerag/internal/domain"
)

var _ domain.Answerer = (*Extractive)(nil)

// NoAnswer is returned when nothing was retrieved.
const NoAnswer = "I don't know."

// Extractive answers offline by summarizing the retrieved chunk texts.
type Extractive struct {
	summarizer   domain.Summarizer
	maxSentences int
}

func NewExtractive(summarizer domain.Summarizer, maxSentences int) *Extractive {
	return &Extractive{summarizer: summarizer, maxSentences: maxSentences}
}

func (e *Extractive) Answer(ctx context.Context, _ string, results []domain.SearchResult) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	if len(results) == 0 {
		return domain.Answer{Text: NoAnswer}, nil
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	summary, err := e.summarizer.Summarize(strings.Join(texts, " "), e.maxSentences)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: summary, Sources: RankedSources(results)}, nil
}

// RankedSources lists each result's source once, in rank order.
func RankedSources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		if _, dup := seen[r.Chunk.Source]; dup || r.Chunk.Source == "" {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, r.Chunk.Source)
	}
	return out
}
