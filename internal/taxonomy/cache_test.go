package taxonomy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/logger"
)

type countingFinder struct {
	mu     sync.Mutex
	calls  int
	answer string
}

func (f *countingFinder) CommonAncestor([]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.answer
}

func TestCachedFinder_MemoizesBySet(t *testing.T) {
	t.Parallel()

	inner := &countingFinder{answer: "mustelid"}
	f := NewCachedFinder(inner, time.Minute)

	assert.Equal(t, "mustelid", f.CommonAncestor([]string{"stoat", "mustelid"}))
	assert.Equal(t, "mustelid", f.CommonAncestor([]string{"Mustelid", "stoat"}))
	assert.Equal(t, "mustelid", f.CommonAncestor([]string{"stoat", "mustelid", "stoat"}))
	assert.Equal(t, 1, inner.calls)

	hits, misses := f.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)

	f.Flush()
	f.CommonAncestor([]string{"stoat", "mustelid"})
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFinder_DoesNotCacheEmpty(t *testing.T) {
	t.Parallel()

	inner := &countingFinder{}
	f := NewCachedFinder(inner, 0)

	f.CommonAncestor([]string{"a", "b"})
	f.CommonAncestor([]string{"a", "b"})
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFinder_PathFromLocalHierarchy(t *testing.T) {
	t.Parallel()

	finder, _, err := NewFinder(Config{Source: SourceRemote, RemoteURL: "https://taxonomy.example.org"}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "mammal", "mustelid", "stoat"}, finder.Path("stoat"))

	bare := NewCachedFinder(&countingFinder{answer: "mammal"}, time.Minute)
	assert.Nil(t, bare.Path("stoat"))
}

type ctxFinder struct {
	countingFinder
	canceled int
}

func (f *ctxFinder) CommonAncestorContext(ctx context.Context, labels []string) string {
	if ctx.Err() != nil {
		f.canceled++
		return ""
	}
	return f.CommonAncestor(labels)
}

func TestCachedFinder_ForwardsContext(t *testing.T) {
	t.Parallel()

	inner := &ctxFinder{countingFinder: countingFinder{answer: "mustelid"}}
	f := NewCachedFinder(inner, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, f.CommonAncestorContext(ctx, []string{"stoat", "ferret"}))
	assert.Equal(t, 1, inner.canceled)
	assert.Zero(t, f.Size(), "canceled lookups are not cached")

	assert.Equal(t, "mustelid", f.CommonAncestorContext(context.Background(), []string{"stoat", "ferret"}))
	assert.Equal(t, "mustelid", f.CommonAncestorContext(ctx, []string{"ferret", "stoat"}), "cached answers ignore ctx")
	assert.Equal(t, 1, inner.calls)
}
