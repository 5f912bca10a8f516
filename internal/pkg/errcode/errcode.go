package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrInvalid
	ErrNotFound
	ErrInternal
	ErrInvalidFile
	ErrFileTooLarge
	ErrMalformedDocument
	ErrInvalidConfig
	ErrIngestionFailed
	ErrEmptyIndex
	ErrSynthesisFailed
	ErrAIUnavailable
	ErrTooMany
)
