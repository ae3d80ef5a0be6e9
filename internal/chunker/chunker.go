// Package chunker splits document text into fixed-size overlapping chunks,
// preserving their order within the document.
package chunker

import (
	"strings"

	"loan-rag/internal/models"
)

const (
	DefaultChunkSize    = 500 // characters
	DefaultChunkOverlap = 50  // characters
)

type Chunker struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks one document's text. Seq starts at 0 and follows the order
// of the spans in the text so neighbouring chunks stay adjacent.
func (c *Chunker) Split(docID, content string) []models.PolicyChunk {
	spans := c.split(content)
	chunks := make([]models.PolicyChunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, models.PolicyChunk{
			DocID:   docID,
			Seq:     i,
			Content: span,
		})
	}
	return chunks
}

func (c *Chunker) split(content string) []string {
	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= c.chunkSize {
		return []string{content}
	}

	var spans []string
	start := 0
	for start < contentLen {
		rawEnd := min(start+c.chunkSize, contentLen)
		end := rawEnd

		// Prefer a clean break within the last 10% of the chunk.
		if end < contentLen {
			lookBack := min(c.chunkSize/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		span := strings.TrimSpace(content[start:end])
		if span != "" {
			spans = append(spans, span)
		}

		next := start + c.chunkSize - c.overlap
		// A clean break can retreat past the overlap window; advancing a
		// full stride from there would skip the characters in between.
		if end < rawEnd {
			if cut := end - c.overlap; cut > start && cut < next {
				next = cut
			}
		}
		start = next
		if start >= contentLen {
			break
		}
	}
	return spans
}
