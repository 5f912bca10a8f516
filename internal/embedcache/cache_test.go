package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/pdfqa/internal/ai"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "count" }

func TestWrapDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Same(t, ai.IEmbedder(inner), Wrap(inner, 0, time.Minute))
	require.Same(t, ai.IEmbedder(inner), Wrap(inner, 10, 0))
	require.Nil(t, Wrap(nil, 10, time.Minute))
}

func TestEmbedderCachesByTaskAndText(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c := New(inner, 16, time.Minute)

	first, err := c.Embed(ctx, "hello", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	first[0] = 99

	second, err := c.Embed(ctx, "hello", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{5, 1}, second)
	require.Equal(t, 1, inner.calls)

	_, err = c.Embed(ctx, "hello", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	st := c.Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(2), st.Misses)
	require.Equal(t, 2, st.Size)
	require.Equal(t, "count", c.ModelName())
}

func TestEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	c := New(inner, 4, time.Minute)
	_, err := c.Embed(context.Background(), "x", "")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "x", "")
	require.Error(t, err)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, 0, c.Stats().Size)
}

func TestBuildCacheKey(t *testing.T) {
	a := buildCacheKey("m", "t", "text")
	require.Equal(t, a, buildCacheKey(" m ", "t", "text"))
	require.NotEqual(t, a, buildCacheKey("m", "t", "text2"))
	require.NotEqual(t, a, buildCacheKey("m2", "t", "text"))
}
