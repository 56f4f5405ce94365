package document

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/zombor/auto-bills/internal/extract"
)

type kind int

const (
	kindUnsupported kind = iota
	kindPDF
	kindHTML
	kindText
)

// Converter extracts text from bill attachments. PDFs are read through MuPDF's
// text layer; scanned images are not supported.
type Converter struct {
	maxPages int
}

// NewConverter creates a Converter. maxPages limits how many PDF pages are
// read; zero or less reads all of them.
func NewConverter(maxPages int) *Converter {
	return &Converter{maxPages: maxPages}
}

// TextFromDocument returns the text of an attachment, or an error wrapping
// extract.ErrSourceUnavailable when there is none to read
func (c *Converter) TextFromDocument(ctx context.Context, attachment extract.Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch detectKind(attachment) {
	case kindPDF:
		return c.pdfText(ctx, attachment.Data)
	case kindHTML:
		text, err := HTMLText(attachment.Data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", err, extract.ErrSourceUnavailable)
		}
		return text, nil
	case kindText:
		return string(attachment.Data), nil
	default:
		return "", fmt.Errorf("unsupported attachment %q (%s): %w",
			attachment.Filename, attachment.ContentType, extract.ErrSourceUnavailable)
	}
}

// pdfText concatenates the text layer of each page
func (c *Converter) pdfText(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w: %w", err, extract.ErrSourceUnavailable)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if c.maxPages > 0 && pages > c.maxPages {
		pages = c.maxPages
	}

	var b strings.Builder
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading PDF page %d: %w: %w", i, err, extract.ErrSourceUnavailable)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("PDF has no text layer: %w", extract.ErrSourceUnavailable)
	}
	return b.String(), nil
}

// detectKind looks at the MIME type first, then the extension, then magic bytes
func detectKind(attachment extract.Attachment) kind {
	mimeType := strings.ToLower(strings.TrimSpace(attachment.ContentType))
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	ext := strings.ToLower(filepath.Ext(attachment.Filename))

	switch {
	case strings.Contains(mimeType, "pdf"), ext == ".pdf", isPDFFormat(attachment.Data):
		return kindPDF
	case mimeType == "text/html", ext == ".html", ext == ".htm":
		return kindHTML
	case mimeType == "text/plain", ext == ".txt":
		return kindText
	}
	return kindUnsupported
}

// isPDFFormat checks for the %PDF- header
func isPDFFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
