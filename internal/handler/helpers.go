package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/middleware"
	"github.com/xxxsen/pdfqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

// ingestion failures wrap their cause, so they are matched first.
var errorMappings = []errorMapping{
	{appErr.ErrIngestionFailed, http.StatusInternalServerError, errcode.ErrIngestionFailed, "ingestion failed"},
	{appErr.ErrInvalid, http.StatusBadRequest, errcode.ErrInvalid, "invalid request"},
	{appErr.ErrMalformedDocument, http.StatusBadRequest, errcode.ErrMalformedDocument, "malformed document"},
	{appErr.ErrInvalidConfig, http.StatusBadRequest, errcode.ErrInvalidConfig, "invalid config"},
	{appErr.ErrEmptyIndex, http.StatusNotFound, errcode.ErrEmptyIndex, "no documents have been ingested"},
	{appErr.ErrSynthesisFailed, http.StatusInternalServerError, errcode.ErrSynthesisFailed, "answer synthesis failed"},
	{ai.ErrUnavailable, http.StatusInternalServerError, errcode.ErrAIUnavailable, "ai provider unavailable"},
}

func classifyError(err error) (int, int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, errcode.ErrInternal, "internal error"
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, message := classifyError(err)
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected")
	}
	var ingErr *appErr.IngestionError
	if errors.As(err, &ingErr) {
		message = fmt.Sprintf("ingestion failed after %d persisted chunks", ingErr.Persisted)
	}
	response.Error(c, status, code, message)
}
