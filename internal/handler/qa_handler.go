package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
	"github.com/xxxsen/pdfqa/internal/service"
)

type Pipeline interface {
	Ingest(ctx context.Context, doc service.Document) ([]model.Chunk, error)
	Answer(ctx context.Context, question string, k int) (*model.Answer, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

type QAHandlerConfig struct {
	MaxUploadBytes int64
	PreviewChunks  int
	SnippetChars   int
}

type QAHandler struct {
	pipeline Pipeline
	cfg      QAHandlerConfig
}

type Similarity struct {
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func NewQAHandler(pipeline Pipeline, cfg QAHandlerConfig) *QAHandler {
	return &QAHandler{pipeline: pipeline, cfg: cfg}
}

// Upload ingests a multipart "file" and returns the leading chunk texts.
func (h *QAHandler) Upload(c *gin.Context) {
	if h.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusBadRequest, errcode.ErrFileTooLarge, "file exceeds "+formatUploadLimit(h.cfg.MaxUploadBytes))
			return
		}
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	chunks, err := h.pipeline.Ingest(c.Request.Context(), service.Document{
		Name:   file.Filename,
		Reader: opened,
		Size:   file.Size,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	n := h.cfg.PreviewChunks
	if n <= 0 || n > len(chunks) {
		n = len(chunks)
	}
	previews := make([]string, 0, n)
	for _, ch := range chunks[:n] {
		previews = append(previews, ch.Content)
	}
	logutil.GetLogger(c.Request.Context()).Info("file ingested",
		zap.String("name", file.Filename),
		zap.Int64("size", file.Size),
		zap.Int("chunks", len(chunks)),
	)
	c.JSON(http.StatusOK, previews)
}

// QA answers ?question= and responds with [answer, similarity].
func (h *QAHandler) QA(c *gin.Context) {
	question := c.Query("question")
	if question == "" {
		question = c.PostForm("question")
	}
	if strings.TrimSpace(question) == "" {
		handleError(c, appErr.ErrInvalid)
		return
	}
	k := 0
	if raw := c.Query("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "k must be a positive integer")
			return
		}
		k = v
	}
	ans, err := h.pipeline.Answer(c.Request.Context(), question, k)
	if err != nil && !(appErr.IsSynthesisFailed(err) && ans != nil) {
		handleError(c, err)
		return
	}
	sims := make([]Similarity, 0, len(ans.Matches))
	for _, m := range ans.Matches {
		sims = append(sims, Similarity{Score: m.Score, Text: service.Snippet(m.Text, h.cfg.SnippetChars)})
	}
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("answer synthesis failed, returning retrieval only", zap.Error(err))
		c.JSON(http.StatusInternalServerError, []interface{}{nil, sims})
		return
	}
	c.JSON(http.StatusOK, []interface{}{ans.Text, sims})
}

func (h *QAHandler) Stats(c *gin.Context) {
	st, err := h.pipeline.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *QAHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
