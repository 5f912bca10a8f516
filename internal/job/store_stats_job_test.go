package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/service"
)

type fakeSource struct {
	calls int
	err   error
}

func (f *fakeSource) Stats(_ context.Context) (*service.Stats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.Stats{Collection: "pdf_table", Records: 7}, nil
}

func TestStoreStatsJob(t *testing.T) {
	src := &fakeSource{}
	j := NewStoreStatsJob(src, nil)
	require.Equal(t, "store_stats", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 1, src.calls)

	src.err = errors.New("down")
	require.Error(t, j.Run(context.Background()))

	require.NoError(t, NewStoreStatsJob(nil, nil).Run(context.Background()))
}
