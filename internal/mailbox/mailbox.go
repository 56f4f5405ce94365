package mailbox

import (
	"context"

	"github.com/zombor/auto-bills/internal/extract"
)

// Envelope is one unread message as fetched from the inbox
type Envelope struct {
	UID         uint32
	From        string
	Subject     string
	Text        string // text/plain body parts
	HTML        string // text/html body parts
	Attachments []extract.Attachment
}

// Session is an open connection to the inbox
type Session interface {
	// Unseen fetches every message without the \Seen flag, without setting it
	Unseen(ctx context.Context) ([]*Envelope, error)

	// MarkSeen sets \Seen on a message
	MarkSeen(ctx context.Context, uid uint32) error

	// Close logs out and releases the connection
	Close() error
}
