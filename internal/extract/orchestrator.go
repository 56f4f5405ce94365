package extract

import (
	"context"
	"log/slog"
	"strings"
)

// Converter turns an attachment into text. Implementations return
// ErrSourceUnavailable (or any plain error) when the document has no usable
// text, and wrap failures that must abort the message with Unrecoverable.
type Converter interface {
	TextFromDocument(ctx context.Context, attachment Attachment) (string, error)
}

// Recorder writes attachment bytes somewhere durable and returns where.
// Discard removes what was written for a message that will be retried.
type Recorder interface {
	Materialize(attachment Attachment) (string, error)
	Discard(paths []string)
}

// Orchestrator decides which sources of a message to scan and merges what they yield
type Orchestrator struct {
	scanner   *Scanner
	converter Converter
	recorder  Recorder
}

// NewOrchestrator creates an Orchestrator. recorder may be nil.
func NewOrchestrator(scanner *Scanner, converter Converter, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		scanner:   scanner,
		converter: converter,
		recorder:  recorder,
	}
}

// Process scans the body first, then each attachment in order, and stops as
// soon as code, value and category are all known. An unreadable attachment is
// skipped; only unrecoverable converter errors are returned.
func (o *Orchestrator) Process(ctx context.Context, msg Message) (*Result, error) {
	result := o.scanner.Scan(msg.Body)
	if result.Satisfied() {
		return result, nil
	}

	for i, attachment := range msg.Attachments {
		if o.recorder != nil {
			path, err := o.recorder.Materialize(attachment)
			if err != nil {
				slog.Warn("Failed to store attachment", "filename", attachment.Filename, "error", err)
			} else {
				result.Materialized = append(result.Materialized, path)
			}
		}

		text, err := o.converter.TextFromDocument(ctx, attachment)
		if err != nil {
			if isFatal(err) {
				if o.recorder != nil && len(result.Materialized) > 0 {
					o.recorder.Discard(result.Materialized)
				}
				return nil, err
			}
			slog.Debug("Skipping attachment",
				"index", i,
				"filename", attachment.Filename,
				"content_type", attachment.ContentType,
				"error", err,
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			slog.Debug("Attachment produced no text", "index", i, "filename", attachment.Filename)
			continue
		}

		result.Merge(o.scanner.Scan(text))
		if result.Satisfied() {
			break
		}
	}

	return result, nil
}
