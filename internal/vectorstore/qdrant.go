package vectorstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/pdfqa/internal/model"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultQdrantPort = 6334

type qdrantConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	UseTLS bool   `json:"use_tls"`
}

type qdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	apiKey      string

	mu    sync.Mutex
	ready bool
}

func NewQdrant(host string, port int, useTLS bool, apiKey string, collection string) (Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &qdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		apiKey:      apiKey,
	}, nil
}

func (r *qdrantStore) withAuth(ctx context.Context) context.Context {
	if r.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", r.apiKey)
}

func (r *qdrantStore) isReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *qdrantStore) markReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
}

// exists reports whether the collection is there. The lookup runs unlocked,
// concurrent callers may both ask before one of them marks it ready.
func (r *qdrantStore) exists(ctx context.Context) (bool, error) {
	if r.isReady() {
		return true, nil
	}
	resp, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return false, fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !resp.GetResult().GetExists() {
		return false, nil
	}
	r.markReady()
	return true, nil
}

// ensureCollection creates the collection sized for the first vector seen.
func (r *qdrantStore) ensureCollection(ctx context.Context, dim int) error {
	ok, err := r.exists(ctx)
	if err != nil || ok {
		return err
	}
	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dim), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	r.markReady()
	logutil.GetLogger(ctx).Info("qdrant collection ready",
		zap.String("collection", r.collection), zap.Int("dim", dim))
	return nil
}

func (r *qdrantStore) Add(ctx context.Context, records []model.Record) ([]string, error) {
	if err := validateRecords(records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	ctx = r.withAuth(ctx)
	if err := r.ensureCollection(ctx, len(records[0].Embedding)); err != nil {
		return nil, err
	}
	ids := assignIDs(records)
	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Embedding}}},
			Payload: map[string]*pb.Value{
				"content": {Kind: &pb.Value_StringValue{StringValue: rec.Text}},
				"source":  {Kind: &pb.Value_StringValue{StringValue: rec.Source}},
				"seq":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(rec.Seq)}},
				"ctime":   {Kind: &pb.Value_IntegerValue{IntegerValue: rec.Ctime}},
			},
		}
	}
	wait := true
	if _, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return nil, fmt.Errorf("qdrant upsert: %w", err)
	}
	return ids, nil
}

func (r *qdrantStore) Search(ctx context.Context, query []float32, k int) ([]model.Match, error) {
	if k <= 0 {
		return []model.Match{}, nil
	}
	ctx = r.withAuth(ctx)
	ok, err := r.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Match{}, nil
	}
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	matches := make([]model.Match, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		matches[i] = model.Match{
			ID:    pt.GetId().GetUuid(),
			Text:  pt.GetPayload()["content"].GetStringValue(),
			Score: float64(pt.GetScore()),
		}
	}
	return matches, nil
}

func (r *qdrantStore) Count(ctx context.Context) (int64, error) {
	ctx = r.withAuth(ctx)
	ok, err := r.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	exact := true
	resp, err := r.points.Count(ctx, &pb.CountPoints{CollectionName: r.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func (r *qdrantStore) Close() error {
	return r.conn.Close()
}

func createQdrantStore(_ context.Context, args *Args) (Store, error) {
	cfg := &qdrantConfig{}
	if err := decodeData(args.Data, cfg); err != nil {
		return nil, err
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = strings.TrimSpace(args.ID)
	}
	if host == "" {
		return nil, fmt.Errorf("qdrant store requires a host")
	}
	port := cfg.Port
	if port == 0 {
		port = defaultQdrantPort
	}
	return NewQdrant(host, port, cfg.UseTLS, strings.TrimSpace(args.Token), args.Collection)
}

func init() {
	Register("qdrant", createQdrantStore)
}
