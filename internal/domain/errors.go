package domain

import "errors"

var (
	ErrUnsupportedFormat      = errors.New("unsupported document format")
	ErrExtraction             = errors.New("document text extraction failed")
	ErrIndexUnavailable       = errors.New("corpus index unavailable")
	ErrAnalysisTimeout        = errors.New("analysis timed out")
	ErrInvalidStateTransition = errors.New("invalid submission state transition")
	ErrAlreadyGraded          = errors.New("submission already graded")
	ErrUnauthorized           = errors.New("principal not authorized for this action")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("invalid argument")
)

// Stable kind strings recorded on failed analysis jobs so callers can
// distinguish retryable failures from terminal ones.
const (
	ErrKindUnsupportedFormat = "unsupported_format"
	ErrKindExtraction        = "extraction"
	ErrKindIndexUnavailable  = "index_unavailable"
	ErrKindTimeout           = "timeout"
	ErrKindInternal          = "internal"
)

func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrKindUnsupportedFormat
	case errors.Is(err, ErrExtraction):
		return ErrKindExtraction
	case errors.Is(err, ErrIndexUnavailable):
		return ErrKindIndexUnavailable
	case errors.Is(err, ErrAnalysisTimeout):
		return ErrKindTimeout
	default:
		return ErrKindInternal
	}
}

// RetryableKind reports whether a failed job with this error kind can be
// re-enqueued for the same revision. Format and extraction failures are
// terminal for the uploaded bytes; the user has to re-upload.
func RetryableKind(kind string) bool {
	switch kind {
	case ErrKindIndexUnavailable, ErrKindTimeout, ErrKindInternal:
		return true
	default:
		return false
	}
}
