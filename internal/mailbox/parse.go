package mailbox

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // Register non UTF-8 charsets
	"github.com/emersion/go-message/mail"

	"github.com/zombor/auto-bills/internal/extract"
)

// Parse reads an RFC 5322 message into an Envelope. Text and HTML body parts
// are kept apart; every other part becomes an attachment in message order.
func Parse(r io.Reader) (*Envelope, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	env := &Envelope{}
	env.Subject, _ = mr.Header.Subject()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].String()
	} else {
		env.From = mr.Header.Get("From")
	}

	var text, html []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !message.IsUnknownCharset(err) {
				return nil, fmt.Errorf("reading message part: %w", err)
			}
			// The part is still returned, with its body left undecoded
			slog.Debug("Unknown charset in message part", "subject", env.Subject, "error", err)
			if p == nil {
				continue
			}
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("reading part body: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			switch contentType {
			case "text/plain", "":
				text = append(text, string(data))
			case "text/html":
				html = append(html, string(data))
			default:
				// Some senders attach the bill inline without a disposition
				env.Attachments = append(env.Attachments, extract.Attachment{
					Filename:    params["name"],
					ContentType: contentType,
					Data:        data,
				})
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			env.Attachments = append(env.Attachments, extract.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
			})
		}
	}

	env.Text = strings.Join(text, "\n")
	env.HTML = strings.Join(html, "\n")
	return env, nil
}
