package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/pdfqa/internal/db"
	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/dbutil"
)

type pgvectorConfig struct {
	DSN     string `json:"dsn"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	User    string `json:"user"`
	SSLMode string `json:"sslmode"`
}

func (c *pgvectorConfig) buildDSN(dbName, password string) string {
	if c.DSN != "" {
		return c.DSN
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	user := c.User
	if user == "" {
		user = "postgres"
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + dbName,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

type pgvectorStore struct {
	db         *sql.DB
	collection string
}

func NewPGVector(ctx context.Context, dsn string, collection string) (Store, error) {
	conn, err := db.Open(ctx, dbutil.DialectPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgvector store: %w", err)
	}
	return &pgvectorStore{db: conn, collection: collection}, nil
}

func (s *pgvectorStore) Add(ctx context.Context, records []model.Record) ([]string, error) {
	if err := validateRecords(records); err != nil {
		return nil, err
	}
	ids := assignIDs(records)
	rows := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]interface{}{
			"id":         r.ID,
			"collection": s.collection,
			"seq":        r.Seq,
			"source":     r.Source,
			"content":    r.Text,
			"embedding":  pgvector.NewVector(r.Embedding),
			"ctime":      r.Ctime,
		})
	}
	if err := insertRows(ctx, s.db, dbutil.DialectPostgres, rows); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *pgvectorStore) Search(ctx context.Context, query []float32, k int) ([]model.Match, error) {
	if k <= 0 {
		return []model.Match{}, nil
	}
	const q = `
		SELECT id, content, 1 - (embedding <=> $1) AS score
		FROM records
		WHERE collection = $2
		ORDER BY embedding <=> $1, ctime, seq
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(query), s.collection, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := make([]model.Match, 0, k)
	for rows.Next() {
		var m model.Match
		var score sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Text, &score); err != nil {
			return nil, err
		}
		// zero vectors yield NaN distance which postgres reports as NULL
		m.Score = score.Float64
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *pgvectorStore) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, s.db, dbutil.DialectPostgres, s.collection)
}

func (s *pgvectorStore) Close() error {
	return s.db.Close()
}

func createPGVectorStore(ctx context.Context, args *Args) (Store, error) {
	cfg := &pgvectorConfig{}
	if err := decodeData(args.Data, cfg); err != nil {
		return nil, err
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" && strings.TrimSpace(args.ID) == "" {
		return nil, fmt.Errorf("pgvector store requires a database name")
	}
	return NewPGVector(ctx, cfg.buildDSN(strings.TrimSpace(args.ID), args.Token), args.Collection)
}

func init() {
	Register("pgvector", createPGVectorStore)
}
