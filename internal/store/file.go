package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/rcliao/robot-brain/internal/model"
)

// FileBackend stores the document as an indented JSON file, replaced
// atomically on every save.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the JSON file at path, creating the
// parent directory.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileBackend{path: path}, nil
}

// Path returns the file location.
func (b *FileBackend) Path() string { return b.path }

type fileObservation struct {
	ID        string `json:"id,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type fileDocument struct {
	Entities map[string]struct {
		Observations []fileObservation `json:"observations"`
	} `json:"entities"`
}

// timestamp layouts accepted on load; files written by older tooling carry
// local times without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Load reads the document. A missing file yields an empty document.
func (b *FileBackend) Load(ctx context.Context) (*model.Document, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	var fd fileDocument
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("decode memory file: %w", err)
	}

	doc := model.NewDocument()
	for name, raw := range fd.Entities {
		el := &model.EntityLog{}
		for _, o := range raw.Observations {
			el.Observations = append(el.Observations, model.Observation{
				ID:        o.ID,
				Content:   o.Content,
				Timestamp: parseTimestamp(o.Timestamp),
			})
		}
		doc.Entities[model.Entity(name)] = el
	}
	return doc, nil
}

// Save writes the document to a temporary file and renames it over the old one.
func (b *FileBackend) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := renameio.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (b *FileBackend) Close() error { return nil }
