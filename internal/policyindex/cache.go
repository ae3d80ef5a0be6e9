// Package policyindex builds and memoizes the semantic index over the
// policy document library. An index is built at most once per document-set
// fingerprint, shared across concurrent callers, and replaced wholesale
// when the document set changes.
package policyindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"loan-rag/internal/chunker"
	"loan-rag/internal/embedding"
	"loan-rag/internal/models"
	"loan-rag/internal/policydocs"
)

const collectionName = "policy_chunks"

var (
	// ErrEmptyCorpus means the document source holds no usable documents;
	// the index cannot be warmed until documents appear.
	ErrEmptyCorpus = errors.New("no policy documents present")
	// ErrEmbeddingUnavailable wraps embedding failures. The fingerprint
	// stays unbuilt so a retry is possible.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Cache memoizes one Index per document-set fingerprint.
type Cache struct {
	docs     policydocs.Source
	embedder embedding.Embedder
	splitter *chunker.Chunker

	group  singleflight.Group
	builds atomic.Int64

	mu      sync.Mutex
	current *Index
}

func NewCache(docs policydocs.Source, embedder embedding.Embedder, splitter *chunker.Chunker) *Cache {
	return &Cache{docs: docs, embedder: embedder, splitter: splitter}
}

// Warm returns the index for the current document set, building it if
// needed. Concurrent callers for the same fingerprint share one build;
// once any caller holds the returned handle the index is fully built and
// immutable. forceRebuild discards a cached index for the same fingerprint.
func (c *Cache) Warm(ctx context.Context, forceRebuild bool) (*Index, error) {
	docs, err := c.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	fp := fingerprint(docs)

	if !forceRebuild {
		c.mu.Lock()
		if c.current != nil && c.current.fingerprint == fp {
			idx := c.current
			c.mu.Unlock()
			return idx, nil
		}
		c.mu.Unlock()
	}

	v, err, _ := c.group.Do(fp, func() (any, error) {
		if !forceRebuild {
			c.mu.Lock()
			if c.current != nil && c.current.fingerprint == fp {
				idx := c.current
				c.mu.Unlock()
				return idx, nil
			}
			c.mu.Unlock()
		}
		idx, err := c.build(ctx, fp, docs)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// BuildCount reports how many index builds have completed.
func (c *Cache) BuildCount() int64 {
	return c.builds.Load()
}

func (c *Cache) build(ctx context.Context, fp string, docs []policydocs.Document) (*Index, error) {
	var chunks []models.PolicyChunk
	for _, doc := range docs {
		chunks = append(chunks, c.splitter.Split(doc.ID, doc.Text)...)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	log.Debug().Int("documents", len(docs)).Int("chunks", len(chunks)).
		Str("fingerprint", fp[:12]).Msg("Building policy index")

	for i := range chunks {
		vec, err := c.embedder.EmbedQuery(ctx, chunks[i].Content)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding chunk %s: %v", ErrEmbeddingUnavailable, chunks[i].Ref(), err)
		}
		chunks[i].Embedding = vec
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	chromemDocs := make([]chromem.Document, len(chunks))
	byID := make(map[string]models.PolicyChunk, len(chunks))
	for i, chunk := range chunks {
		chromemDocs[i] = chromem.Document{
			ID:        chunk.Ref(),
			Content:   chunk.Content,
			Metadata:  map[string]string{"doc_id": chunk.DocID},
			Embedding: chunk.Embedding,
		}
		byID[chunk.Ref()] = chunk
	}
	if err := collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	c.builds.Add(1)
	return &Index{
		fingerprint: fp,
		chunks:      chunks,
		byID:        byID,
		collection:  collection,
		embedder:    c.embedder,
	}, nil
}

// fingerprint identifies a document set by its IDs and contents so a cached
// index is reused exactly until the set changes.
func fingerprint(docs []policydocs.Document) string {
	h := sha256.New()
	for _, doc := range docs {
		h.Write([]byte(doc.ID))
		h.Write([]byte{0})
		h.Write([]byte(doc.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
