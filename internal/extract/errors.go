package extract

import (
	"context"
	"errors"
)

// ErrSourceUnavailable is returned by converters when a document yields no text.
// The orchestrator skips such sources.
var ErrSourceUnavailable = errors.New("source unavailable")

// UpstreamError marks a collaborator failure that must abort the message
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "upstream failure: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Unrecoverable wraps err so the orchestrator propagates it instead of skipping the source
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Err: err}
}

func isFatal(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
