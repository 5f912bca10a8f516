package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/vectorstore"
)

const (
	defaultTopK      = 3
	defaultBatchSize = 32
)

type TextExtractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

type TextSplitter interface {
	Split(ctx context.Context, text string) []model.Chunk
}

type AnswerSynthesizer interface {
	Answer(ctx context.Context, question string, passages []string) (string, error)
}

type Document struct {
	Name   string
	Reader io.ReaderAt
	Size   int64
}

type QAConfig struct {
	Collection string
	TopK       int
	BatchSize  int
}

type Stats struct {
	Collection string `json:"collection"`
	Records    int64  `json:"records"`
}

type QAService struct {
	extractor TextExtractor
	splitter  TextSplitter
	embedder  ai.IEmbedder
	store     vectorstore.Store
	synth     AnswerSynthesizer
	cfg       QAConfig
	now       func() time.Time
}

func NewQAService(extractor TextExtractor, splitter TextSplitter, embedder ai.IEmbedder,
	store vectorstore.Store, synth AnswerSynthesizer, cfg QAConfig) *QAService {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &QAService{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		synth:     synth,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Ingest extracts, splits, embeds and stores a document, returning every
// chunk in document order. Batches written before a failure are kept and
// counted in the returned *IngestionError.
func (s *QAService) Ingest(ctx context.Context, doc Document) ([]model.Chunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document", doc.Name))
	start := time.Now()
	text, err := s.extractor.Extract(ctx, doc.Reader, doc.Size)
	if err != nil {
		return nil, err
	}
	chunks := s.splitter.Split(ctx, text)
	logger.Info("document split", zap.Int("text_len", len(text)), zap.Int("chunks", len(chunks)))

	ctime := s.now().UnixMilli()
	persisted := 0
	for begin := 0; begin < len(chunks); begin += s.cfg.BatchSize {
		end := begin + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		records := make([]model.Record, 0, end-begin)
		for _, c := range chunks[begin:end] {
			vec, err := s.embedder.Embed(ctx, c.Content, ai.TaskRetrievalDocument)
			if err != nil {
				logger.Error("embed chunk failed", zap.Int("index", c.Index), zap.Int("persisted", persisted), zap.Error(err))
				return nil, appErr.NewIngestionError(persisted, fmt.Errorf("embed chunk %d: %w", c.Index, err))
			}
			records = append(records, model.Record{
				Text:      c.Content,
				Embedding: vec,
				Seq:       c.Index,
				Source:    doc.Name,
				Ctime:     ctime,
			})
		}
		if _, err := s.store.Add(ctx, records); err != nil {
			logger.Error("store batch failed", zap.Int("batch_start", begin), zap.Int("persisted", persisted), zap.Error(err))
			return nil, appErr.NewIngestionError(persisted, fmt.Errorf("store chunks %d-%d: %w", begin, end-1, err))
		}
		persisted += len(records)
	}
	logger.Info("document ingested", zap.Int("persisted", persisted), zap.Duration("cost", time.Since(start)))
	return chunks, nil
}

// Answer runs a single retrieval and uses the same matches both as the
// synthesizer context and as the returned similarity list. On synthesis
// failure the matches are still returned alongside the error.
func (s *QAService) Answer(ctx context.Context, question string, k int) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("k", k))
	cnt, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if cnt == 0 {
		return nil, appErr.ErrEmptyIndex
	}
	vec, err := s.embedder.Embed(ctx, question, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	if len(matches) == 0 {
		return nil, appErr.ErrEmptyIndex
	}
	logger.Debug("records retrieved", zap.Int("matches", len(matches)), zap.Float64("top_score", matches[0].Score))

	passages := make([]string, len(matches))
	for i, m := range matches {
		passages[i] = m.Text
	}
	text, err := s.synth.Answer(ctx, question, passages)
	if err != nil {
		logger.Error("synthesize answer failed", zap.Error(err))
		return &model.Answer{Matches: matches}, fmt.Errorf("%w: %w", appErr.ErrSynthesisFailed, err)
	}
	return &model.Answer{Text: &text, Matches: matches}, nil
}

func (s *QAService) Stats(ctx context.Context) (*Stats, error) {
	cnt, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Collection: s.cfg.Collection, Records: cnt}, nil
}

// Snippet cuts text to at most n runes for display.
func Snippet(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
