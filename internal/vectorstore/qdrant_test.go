package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type fakeCollections struct {
	pb.CollectionsClient

	exists    bool
	createErr error
	gate      int32 // holds CollectionExists until this many calls are in flight

	existsCalls atomic.Int32
	createCalls atomic.Int32
	inFlight    atomic.Int32
	once        sync.Once
	release     chan struct{}
}

func newFakeCollections(exists bool) *fakeCollections {
	return &fakeCollections{exists: exists, release: make(chan struct{})}
}

func (f *fakeCollections) CollectionExists(ctx context.Context, _ *pb.CollectionExistsRequest, _ ...grpc.CallOption) (*pb.CollectionExistsResponse, error) {
	f.existsCalls.Add(1)
	if f.gate > 0 {
		if f.inFlight.Add(1) >= f.gate {
			f.once.Do(func() { close(f.release) })
		}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: f.exists}}, nil
}

func (f *fakeCollections) Create(_ context.Context, _ *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.createCalls.Add(1)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func TestQdrantExistsCachesReady(t *testing.T) {
	fc := newFakeCollections(true)
	s := &qdrantStore{collections: fc, collection: "pdf_table"}

	for i := 0; i < 3; i++ {
		ok, err := s.exists(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, int32(1), fc.existsCalls.Load())
}

func TestQdrantExistsMissingIsNotCached(t *testing.T) {
	fc := newFakeCollections(false)
	s := &qdrantStore{collections: fc, collection: "pdf_table"}

	for i := 0; i < 2; i++ {
		ok, err := s.exists(context.Background())
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Equal(t, int32(2), fc.existsCalls.Load())
}

func TestQdrantExistsLookupsRunConcurrently(t *testing.T) {
	fc := newFakeCollections(true)
	fc.gate = 2
	s := &qdrantStore{collections: fc, collection: "pdf_table"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.exists(ctx)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.True(t, s.isReady())
}

func TestQdrantEnsureCollection(t *testing.T) {
	tests := []struct {
		name      string
		exists    bool
		createErr error
		wantErr   bool
		wantCalls int32
	}{
		{name: "already_present", exists: true, wantCalls: 0},
		{name: "created", exists: false, wantCalls: 1},
		{name: "created_concurrently", exists: false, createErr: errors.New("collection pdf_table already exists"), wantCalls: 1},
		{name: "create_failed", exists: false, createErr: errors.New("unavailable"), wantErr: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeCollections(tt.exists)
			fc.createErr = tt.createErr
			s := &qdrantStore{collections: fc, collection: "pdf_table"}

			err := s.ensureCollection(context.Background(), 3)
			require.Equal(t, tt.wantCalls, fc.createCalls.Load())
			if tt.wantErr {
				require.Error(t, err)
				require.False(t, s.isReady())
				return
			}
			require.NoError(t, err)
			require.True(t, s.isReady())

			require.NoError(t, s.ensureCollection(context.Background(), 3))
			require.Equal(t, tt.wantCalls, fc.createCalls.Load())
		})
	}
}
