// Package summarizer picks the most representative sentences of a text.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"pagerag/internal/domain"
	"pagerag/internal/embedding/tfidf"
)

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// DefaultMaxSentences is used when callers pass zero or less.
const DefaultMaxSentences = 5

// sentences end at . ! or ? or at the end of the text
var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// FrequencySummarizer ranks sentences by the normalized frequency of their
// non-stopword tokens.
type FrequencySummarizer struct{}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Summarize returns up to maxSentences sentences in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = tfidf.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	var maxF float64
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		var sum float64
		for _, tok := range tokens[i] {
			sum += freq[tok] / maxF
		}
		// long sentences should not win on length alone
		if l := float64(len(tokens[i])); l > 0 {
			sum /= math.Sqrt(l)
		}
		scores[i] = scored{i, sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
