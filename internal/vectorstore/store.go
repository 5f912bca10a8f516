package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/pdfqa/internal/model"
)

const DefaultCollection = "pdf_table"

// Store persists embedded records for one collection and answers
// nearest-neighbour queries over them.
type Store interface {
	Add(ctx context.Context, records []model.Record) ([]string, error)
	Search(ctx context.Context, query []float32, k int) ([]model.Match, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Args is what a backend factory receives. ID names the database,
// Token authenticates against it; Data carries backend specific settings.
type Args struct {
	Collection string
	ID         string
	Token      string
	Data       interface{}
}

type Factory func(ctx context.Context, args *Args) (Store, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || f == nil {
		return
	}
	registry[key] = f
}

func New(ctx context.Context, name string, args *Args) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unsupported vector store: %s", name)
	}
	if args == nil {
		args = &Args{}
	}
	if strings.TrimSpace(args.Collection) == "" {
		args.Collection = DefaultCollection
	}
	return f(ctx, args)
}

func decodeData(data interface{}, dst interface{}) error {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode vector store data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode vector store data: %w", err)
	}
	return nil
}

// assignIDs fills empty record ids in place and returns them in order.
func assignIDs(records []model.Record) []string {
	ids := make([]string, len(records))
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		ids[i] = records[i].ID
	}
	return ids
}

func validateRecords(records []model.Record) error {
	for i, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %d has empty embedding", i)
		}
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankByCosine scores every candidate and keeps the top k. Ties keep
// candidate order.
func rankByCosine(query []float32, candidates []model.Record, k int) []model.Match {
	if k <= 0 || len(candidates) == 0 {
		return []model.Match{}
	}
	matches := make([]model.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = model.Match{ID: c.ID, Text: c.Text, Score: cosineSimilarity(query, c.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
