package policyindex

import (
	"context"
	"fmt"
	"sort"

	"github.com/philippgille/chromem-go"

	"loan-rag/internal/embedding"
	"loan-rag/internal/models"
)

// Index is a fully built, immutable nearest-neighbour index over the policy
// chunks of one document-set fingerprint.
type Index struct {
	fingerprint string
	chunks      []models.PolicyChunk
	byID        map[string]models.PolicyChunk
	collection  *chromem.Collection
	embedder    embedding.Embedder
}

// Match is one retrieved chunk with its cosine similarity score.
type Match struct {
	Chunk models.PolicyChunk
	Score float32
}

// Fingerprint identifies the document set this index was built from.
func (idx *Index) Fingerprint() string {
	return idx.fingerprint
}

// Query embeds the text and returns the top-k chunks by similarity. Ties
// are broken by (document ID, chunk sequence) ascending so citations are
// reproducible across calls. All chunks are scored before truncating to k:
// the store's own top-k selection does not order tied scores, so cutting
// there would make the k boundary nondeterministic.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	if k > len(idx.chunks) {
		k = len(idx.chunks)
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrEmbeddingUnavailable, err)
	}

	results, err := idx.collection.QueryEmbedding(ctx, queryVec, len(idx.chunks), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying policy index: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		chunk, ok := idx.byID[res.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Chunk: chunk, Score: res.Similarity})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Chunk.DocID != matches[j].Chunk.DocID {
			return matches[i].Chunk.DocID < matches[j].Chunk.DocID
		}
		return matches[i].Chunk.Seq < matches[j].Chunk.Seq
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Window returns the chunk plus up to before/after neighbouring chunks from
// the same document, in sequence order, for wider citation context.
func (idx *Index) Window(chunk models.PolicyChunk, before, after int) []models.PolicyChunk {
	var doc []models.PolicyChunk
	for _, c := range idx.chunks {
		if c.DocID == chunk.DocID {
			doc = append(doc, c)
		}
	}
	lo := chunk.Seq - before
	if lo < 0 {
		lo = 0
	}
	hi := chunk.Seq + after
	if hi > len(doc)-1 {
		hi = len(doc) - 1
	}
	if lo > hi {
		return nil
	}
	return doc[lo : hi+1]
}
