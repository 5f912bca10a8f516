package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/pdfqa/internal/db"
	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/dbutil"
)

type sqliteConfig struct {
	DSN string `json:"dsn"`
}

// sqliteStore keeps embeddings as JSON and ranks them in process.
type sqliteStore struct {
	db         *sql.DB
	collection string
}

func NewSQLite(ctx context.Context, dsn string, collection string) (Store, error) {
	conn, err := db.Open(ctx, dbutil.DialectSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return &sqliteStore{db: conn, collection: collection}, nil
}

func (s *sqliteStore) Add(ctx context.Context, records []model.Record) ([]string, error) {
	if err := validateRecords(records); err != nil {
		return nil, err
	}
	ids := assignIDs(records)
	rows := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		blob, err := json.Marshal(r.Embedding)
		if err != nil {
			return nil, err
		}
		rows = append(rows, map[string]interface{}{
			"id":         r.ID,
			"collection": s.collection,
			"seq":        r.Seq,
			"source":     r.Source,
			"content":    r.Text,
			"embedding":  blob,
			"ctime":      r.Ctime,
		})
	}
	if err := insertRows(ctx, s.db, dbutil.DialectSQLite, rows); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *sqliteStore) Search(ctx context.Context, query []float32, k int) ([]model.Match, error) {
	where := map[string]interface{}{
		"collection": s.collection,
		"_orderby":   "ctime asc, rowid asc",
	}
	sqlStr, args, err := builder.BuildSelect(recordsTable, where, []string{"id", "content", "embedding"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []model.Record
	for rows.Next() {
		var item model.Record
		var blob []byte
		if err := rows.Scan(&item.ID, &item.Text, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &item.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", item.ID, err)
		}
		candidates = append(candidates, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankByCosine(query, candidates, k), nil
}

func (s *sqliteStore) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, s.db, dbutil.DialectSQLite, s.collection)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func createSQLiteStore(ctx context.Context, args *Args) (Store, error) {
	cfg := &sqliteConfig{}
	if err := decodeData(args.Data, cfg); err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		dsn = strings.TrimSpace(args.ID)
	}
	if dsn == "" {
		return nil, fmt.Errorf("sqlite store requires a dsn")
	}
	return NewSQLite(ctx, dsn, args.Collection)
}

func init() {
	Register("sqlite", createSQLiteStore)
}
