package notify

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned when sending through a channel that has not
	// finished starting, failed, or was shut down
	ErrNotReady = errors.New("channel not ready")

	// ErrInvalidRecipient is returned for destinations the channel cannot address
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrClosed is the failure recorded by Shutdown
	ErrClosed = errors.New("channel closed")
)

// Channel delivers text messages to a recipient
type Channel interface {
	Send(ctx context.Context, recipient, text string) error
}
