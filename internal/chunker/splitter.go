package chunker

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const (
	DefaultSize      = 800
	DefaultOverlap   = 200
	DefaultSeparator = "\n"
)

type Options struct {
	Size      int    `json:"size"`
	Overlap   int    `json:"overlap"`
	Separator string `json:"separator"`
}

func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap, Separator: DefaultSeparator}
}

func (o Options) Validate() error {
	switch {
	case o.Size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", appErr.ErrInvalidConfig, o.Size)
	case o.Overlap < 0:
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", appErr.ErrInvalidConfig, o.Overlap)
	case o.Overlap >= o.Size:
		return fmt.Errorf("%w: chunk overlap %d must be smaller than size %d", appErr.ErrInvalidConfig, o.Overlap, o.Size)
	case o.Separator == "":
		return fmt.Errorf("%w: chunk separator is required", appErr.ErrInvalidConfig)
	}
	return nil
}

// Splitter cuts text into overlapping chunks of at most Size runes, breaking
// only after a separator. A segment longer than Size is kept whole.
type Splitter struct {
	opts Options
	sep  []rune
}

func NewSplitter(opts Options) (*Splitter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{opts: opts, sep: []rune(opts.Separator)}, nil
}

func (s *Splitter) Options() Options {
	return s.opts
}

// Split is deterministic. Each chunk after the first starts with the last
// Overlap runes of its predecessor, shrunk when needed to stay within Size,
// so the chunks minus their overlaps concatenate back to text.
func (s *Splitter) Split(ctx context.Context, text string) []model.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	size, overlap := s.opts.Size, s.opts.Overlap
	ends := segmentEnds(runes, s.sep)

	var chunks []model.Chunk
	emit := func(start, end, lead int) {
		chunks = append(chunks, model.Chunk{
			Content: string(runes[start:end]),
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Overlap: lead,
		})
	}

	start, end, lead := 0, 0, 0
	for _, segEnd := range ends {
		if end == start || segEnd-start <= size {
			end = segEnd
			continue
		}
		emit(start, end, lead)
		next := end - overlap
		if next < start {
			next = start
		}
		if segEnd-next > size {
			next = segEnd - size
		}
		if next > end {
			next = end
		}
		start, lead, end = next, end-next, segEnd
	}
	emit(start, end, lead)

	logutil.GetLogger(ctx).Debug("text split",
		zap.Int("runes", len(runes)),
		zap.Int("segments", len(ends)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// segmentEnds returns the end offset of every segment. A segment keeps its
// trailing separator so that segments tile the text exactly.
func segmentEnds(text, sep []rune) []int {
	var ends []int
	for i := 0; i+len(sep) <= len(text); {
		if hasPrefix(text[i:], sep) {
			i += len(sep)
			ends = append(ends, i)
			continue
		}
		i++
	}
	if len(ends) == 0 || ends[len(ends)-1] != len(text) {
		ends = append(ends, len(text))
	}
	return ends
}

func hasPrefix(s, prefix []rune) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
