package assetpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// documentVersion is bumped whenever the persisted layout changes.
const documentVersion = 1

// Document is the persisted form of a Manifest.
type Document struct {
	Version    int                  `json:"version"`
	Revision   string               `json:"revision"`  // changes on every commit
	UpdatedAt  time.Time            `json:"updatedAt"` // when the last commit happened
	References map[string]Reference `json:"references"`
}

// Storage loads and saves manifest documents.
type Storage interface {
	// Load returns the stored document, or an empty one if nothing was saved yet.
	Load(ctx context.Context) (*Document, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc *Document) error
}

// FileStorage keeps the manifest as a single JSON file.
type FileStorage struct {
	path string
	fs   afero.Fs
}

// NewFileStorage returns a Storage that reads and writes path on fs.
func NewFileStorage(fs afero.Fs, path string) *FileStorage {
	return &FileStorage{path: path, fs: fs}
}

// Path returns the manifest file location.
func (s *FileStorage) Path() string {
	return s.path
}

// Load implements Storage.
func (s *FileStorage) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Version: documentVersion, References: map[string]Reference{}}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest %s: %w", s.path, err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("manifest %s has version %d, newest supported is %d", s.path, doc.Version, documentVersion)
	}
	if doc.References == nil {
		doc.References = map[string]Reference{}
	}
	return &doc, nil
}

// Save implements Storage.
func (s *FileStorage) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Write next to the target and rename so readers never see a partial file.
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}
