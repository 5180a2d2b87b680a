package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"pagerag/internal/domain"
)

// DefaultMaxChunkSize is the chunk bound in characters when none is configured.
const DefaultMaxChunkSize = 3000

// Delimiter separates sentence fragments. Abbreviations and decimals are not
// special-cased.
const Delimiter = "."

// SentenceChunker packs '.'-delimited fragments greedily into chunks shorter
// than maxChunkSize characters. A fragment that alone reaches the bound
// becomes its own oversized chunk.
type SentenceChunker struct {
	maxChunkSize int
}

func NewSentenceChunker(maxChunkSize int) *SentenceChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &SentenceChunker{maxChunkSize: maxChunkSize}
}

// MaxChunkSize returns the configured bound.
func (c *SentenceChunker) MaxChunkSize() int { return c.maxChunkSize }

// Chunk splits corpus into chunks tagged with sourceID and source.
func (c *SentenceChunker) Chunk(sourceID, source, corpus string) []domain.Chunk {
	texts := c.Split(corpus)
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			SourceID: sourceID,
			ChunkID:  sourceID + ":" + strconv.Itoa(i),
			Source:   source,
			Text:     text,
			Index:    i,
		}
	}
	return chunks
}

// Split returns the chunk texts for corpus.
//
// Every fragment but the last gets its delimiter back; the text after the
// final '.' never had one. A running chunk is closed when appending the next
// piece would bring it to maxChunkSize or beyond. Closed chunks are trimmed and
// dropped if nothing but whitespace remains.
func (c *SentenceChunker) Split(corpus string) []string {
	fragments := strings.Split(corpus, Delimiter)
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
		curLen = 0
	}
	for i, fragment := range fragments {
		piece := fragment
		if i < len(fragments)-1 {
			piece += Delimiter
		}
		if piece == "" {
			continue
		}
		pieceLen := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+pieceLen >= c.maxChunkSize {
			flush()
		}
		current.WriteString(piece)
		curLen += pieceLen
	}
	flush()
	return chunks
}
