package policyindex

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-rag/internal/chunker"
	"loan-rag/internal/policydocs"
)

type fakeDocs struct {
	mu   sync.Mutex
	docs []policydocs.Document
}

func (f *fakeDocs) List(_ context.Context) ([]policydocs.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]policydocs.Document(nil), f.docs...), nil
}

func (f *fakeDocs) set(docs []policydocs.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = docs
}

// fakeEmbedder maps text onto one of three orthogonal axes by keyword, so
// similarity is 1 for a keyword match and 0 otherwise.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failNext int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("embedding backend down")
	}
	switch {
	case strings.Contains(text, "interest"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "residency"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func corpus() []policydocs.Document {
	return []policydocs.Document{
		{ID: "alpha.txt", Text: "interest rates for approved loans"},
		{ID: "beta.txt", Text: "residency requirements for foreign applicants"},
	}
}

func newTestCache(docs *fakeDocs, embedder *fakeEmbedder) *Cache {
	return NewCache(docs, embedder, chunker.New(500, 50))
}

func TestWarmBuildsOnce(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	first, err := cache.Warm(ctx, false)
	require.NoError(t, err)
	second, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), cache.BuildCount())

	a, err := first.Query(ctx, "interest", 1)
	require.NoError(t, err)
	b, err := second.Query(ctx, "interest", 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWarmConcurrentSingleFlight(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	handles := make([]*Index, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = cache.Warm(ctx, false)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), cache.BuildCount())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestWarmForceRebuild(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	_, err := cache.Warm(ctx, false)
	require.NoError(t, err)
	_, err = cache.Warm(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.BuildCount())
}

func TestWarmRebuildsOnFingerprintChange(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	first, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	changed := corpus()
	changed[0].Text = "interest rates were revised this quarter"
	docs.set(changed)

	second, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, int64(2), cache.BuildCount())
}

func TestWarmEmptyCorpus(t *testing.T) {
	cache := newTestCache(&fakeDocs{}, &fakeEmbedder{})
	_, err := cache.Warm(context.Background(), false)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestWarmEmbeddingFailureNotCached(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	embedder := &fakeEmbedder{failNext: 1}
	cache := newTestCache(docs, embedder)
	ctx := context.Background()

	_, err := cache.Warm(ctx, false)
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, int64(0), cache.BuildCount())

	// The failed fingerprint was not cached, so a retry rebuilds cleanly.
	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)
	assert.NotNil(t, idx)
	assert.Equal(t, int64(1), cache.BuildCount())
}

func TestQueryDeterministicOrdering(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	first, err := idx.Query(ctx, "what is the interest rate", 2)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, "alpha.txt", first[0].Chunk.DocID)

	for i := 0; i < 5; i++ {
		again, err := idx.Query(ctx, "what is the interest rate", 2)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQueryTieBreakBySequence(t *testing.T) {
	// Both documents embed onto the same axis, so every chunk scores
	// identically and ordering must fall back to (doc ID, sequence).
	docs := &fakeDocs{docs: []policydocs.Document{
		{ID: "b.txt", Text: "interest clause two"},
		{ID: "a.txt", Text: "interest clause one"},
	}}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	matches, err := idx.Query(ctx, "interest", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "a.txt", matches[0].Chunk.DocID)
	assert.Equal(t, "b.txt", matches[1].Chunk.DocID)
}

func TestQueryTieBandWiderThanK(t *testing.T) {
	// Six chunks all score identically, so which two survive the k cut is
	// decided purely by the (doc ID, sequence) order, every time.
	docs := &fakeDocs{docs: []policydocs.Document{
		{ID: "f.txt", Text: "interest clause"},
		{ID: "c.txt", Text: "interest clause"},
		{ID: "a.txt", Text: "interest clause"},
		{ID: "e.txt", Text: "interest clause"},
		{ID: "b.txt", Text: "interest clause"},
		{ID: "d.txt", Text: "interest clause"},
	}}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		matches, err := idx.Query(ctx, "interest clause", 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "a.txt", matches[0].Chunk.DocID)
		assert.Equal(t, "b.txt", matches[1].Chunk.DocID)
	}
}

func TestQueryClampsK(t *testing.T) {
	docs := &fakeDocs{docs: corpus()}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)

	matches, err := idx.Query(ctx, "interest", 50)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestWindowPreservesChunkOrder(t *testing.T) {
	long := strings.Repeat("interest policy clause. ", 100)
	docs := &fakeDocs{docs: []policydocs.Document{{ID: "long.txt", Text: long}}}
	cache := newTestCache(docs, &fakeEmbedder{})
	ctx := context.Background()

	idx, err := cache.Warm(ctx, false)
	require.NoError(t, err)
	require.Greater(t, len(idx.chunks), 2)

	middle := idx.chunks[1]
	window := idx.Window(middle, 1, 1)
	require.Len(t, window, 3)
	assert.Equal(t, 0, window[0].Seq)
	assert.Equal(t, 1, window[1].Seq)
	assert.Equal(t, 2, window[2].Seq)
}
