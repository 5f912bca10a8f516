package vectorstore

import (
	"context"
	"sync"

	"github.com/xxxsen/pdfqa/internal/model"
)

type memoryStore struct {
	mu      sync.RWMutex
	records []model.Record
}

func NewMemory() Store {
	return &memoryStore{}
}

func (m *memoryStore) Add(_ context.Context, records []model.Record) ([]string, error) {
	if err := validateRecords(records); err != nil {
		return nil, err
	}
	ids := assignIDs(records)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		m.records = append(m.records, r)
	}
	return ids, nil
}

func (m *memoryStore) Search(_ context.Context, query []float32, k int) ([]model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rankByCosine(query, m.records, k), nil
}

func (m *memoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

func (m *memoryStore) Close() error {
	return nil
}

func init() {
	Register("memory", func(_ context.Context, _ *Args) (Store, error) {
		return NewMemory(), nil
	})
}
