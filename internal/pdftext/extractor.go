package pdftext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

// Page is a single page whose text may or may not be extractable.
type Page interface {
	ExtractText() (string, bool)
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every page in order. Pages without text, or
// whose extraction fails, are skipped. Only an unreadable container is an error.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	pages, err := Open(r, size)
	if err != nil {
		return "", err
	}
	text, skipped := Concat(pages)
	logutil.GetLogger(ctx).Info("pdf text extracted",
		zap.Int("pages", len(pages)),
		zap.Int("skipped_pages", skipped),
		zap.Int("size", len(text)),
	)
	return text, nil
}

// Open parses the PDF container and returns its pages in stored order.
func Open(r io.ReaderAt, size int64) (pages []Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", appErr.ErrMalformedDocument, rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrMalformedDocument, err)
	}
	n := reader.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, &pdfPage{reader: reader, num: i})
	}
	return pages, nil
}

// Concat joins page texts without adding separators and reports how many
// pages were skipped. Whitespace-only text counts as no text.
func Concat(pages []Page) (string, int) {
	var sb strings.Builder
	skipped := 0
	for _, p := range pages {
		text, ok := p.ExtractText()
		if !ok || strings.TrimSpace(text) == "" {
			skipped++
			continue
		}
		sb.WriteString(text)
	}
	return sb.String(), skipped
}

type pdfPage struct {
	reader *pdf.Reader
	num    int
}

func (p *pdfPage) ExtractText() (text string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			text, ok = "", false
		}
	}()
	page := p.reader.Page(p.num)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	// GetPlainText opens every page with a row break, blank pages yield only that.
	text = strings.TrimPrefix(text, "\n")
	return text, strings.TrimSpace(text) != ""
}
