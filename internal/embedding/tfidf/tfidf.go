// Package tfidf is a local, deterministic embedder for offline use.
package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"pagerag/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

var (
	ErrEmptyCorpus = errors.New("empty corpus for TF-IDF prepare")
	ErrNoTokens    = errors.New("no tokens found in corpus")
	ErrNotPrepared = errors.New("tfidf embedder not prepared")
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder builds a vocabulary over the chunk texts and embeds text as a
// smoothed TF-IDF vector, L2-normalized.
type Embedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
}

func NewEmbedder() *Embedder {
	return &Embedder{}
}

func (e *Embedder) Name() string { return "tfidf" }

// Prepare replaces any previous vocabulary with one built from corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return ErrNoTokens
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.vocabulary, e.idf = vocab, idf
	e.mu.Unlock()
	return nil
}

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed returns a zero vector when text shares no terms with the vocabulary.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocabulary == nil {
		return nil, ErrNotPrepared
	}

	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range Tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Tokenize lowercases text and returns its word and number tokens with
// stopwords removed.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this",
		"that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during", "before", "after", "above",
		"below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should",
		"now", "what", "which", "who", "how", "do", "does", "i", "you", "we", "my", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
