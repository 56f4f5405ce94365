package bills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/zombor/auto-bills/internal/extract"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save writes data under filename and returns the stored path
	Save(filename string, data []byte) (string, error)

	// Delete removes a file
	Delete(path string) error
}

// LocalStorage keeps files in a directory on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates basePath if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if err := os.WriteFile(l.resolve(filename), data, 0o644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

func (l *LocalStorage) Delete(path string) error {
	if err := os.Remove(l.resolve(path)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// resolve keeps every path inside basePath
func (l *LocalStorage) resolve(path string) string {
	return filepath.Join(l.basePath, filepath.Base(filepath.Clean("/"+path)))
}

// IDGenerator generates unique IDs for stored attachments and cycles
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// AttachmentStore materializes message attachments into a Storage before
// they are converted, so the raw documents can be inspected afterwards.
type AttachmentStore struct {
	storage     Storage
	idGenerator IDGenerator
}

// NewAttachmentStore creates an AttachmentStore naming files with random UUIDs
func NewAttachmentStore(storage Storage) *AttachmentStore {
	return NewAttachmentStoreWithDeps(storage, uuidGenerator{})
}

// NewAttachmentStoreWithDeps creates an AttachmentStore with a custom ID generator for testing
func NewAttachmentStoreWithDeps(storage Storage, idGenerator IDGenerator) *AttachmentStore {
	return &AttachmentStore{
		storage:     storage,
		idGenerator: idGenerator,
	}
}

// Materialize implements extract.Recorder
func (a *AttachmentStore) Materialize(attachment extract.Attachment) (string, error) {
	name := fmt.Sprintf("%s_%s", a.idGenerator.Generate(), sanitizeFilename(attachment.Filename))
	path, err := a.storage.Save(name, attachment.Data)
	if err != nil {
		return "", fmt.Errorf("saving attachment %q: %w", attachment.Filename, err)
	}
	return path, nil
}

// Discard implements extract.Recorder. Files that are already gone are only logged.
func (a *AttachmentStore) Discard(paths []string) {
	for _, path := range paths {
		if err := a.storage.Delete(path); err != nil {
			slog.Warn("Failed to discard attachment", "path", path, "error", err)
		}
	}
}

const maxFilenameBase = 50

// sanitizeFilename drops directory parts and any character outside letters,
// digits, '-' and '_', collapsing whitespace runs into a single '_'.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filepath.Clean("/" + filename))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	keep := func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}
	base = strings.Join(strings.Fields(strings.Map(keep, base)), "_")
	if runes := []rune(base); len(runes) > maxFilenameBase {
		base = string(runes[:maxFilenameBase])
	}
	if base == "" {
		base = "anexo"
	}

	ext = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, ext)
	if ext == "" {
		return base
	}
	return base + "." + ext
}
