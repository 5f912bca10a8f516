package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid           = errors.New("invalid")
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrMissingCredential = errors.New("missing credential")
	ErrIngestionFailed   = errors.New("ingestion failed")
	ErrEmptyIndex        = errors.New("empty index")
	ErrSynthesisFailed   = errors.New("synthesis failed")
)

// IngestionError reports an ingestion that stopped part way. Records written
// before the failure stay in the store.
type IngestionError struct {
	Persisted int
	Err       error
}

func NewIngestionError(persisted int, err error) *IngestionError {
	return &IngestionError{Persisted: persisted, Err: err}
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed after %d persisted chunks: %v", e.Persisted, e.Err)
}

func (e *IngestionError) Unwrap() []error {
	return []error{ErrIngestionFailed, e.Err}
}

func IsEmptyIndex(err error) bool {
	return errors.Is(err, ErrEmptyIndex)
}

func IsSynthesisFailed(err error) bool {
	return errors.Is(err, ErrSynthesisFailed)
}
