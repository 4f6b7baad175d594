package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StagedFile is an upload written to the upload directory for the lifetime of one request
type StagedFile struct {
	Path string
	Size int
}

// Stager writes uploads to uniquely named files in one directory
type Stager struct {
	dir string
}

// NewStager creates the upload directory if needed
func NewStager(dir string) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Stager{dir: dir}, nil
}

// Dir returns the upload directory
func (s *Stager) Dir() string {
	return s.dir
}

// Stage writes data to a new file. The returned cleanup removes it and must be
// called on every path; it is safe to call more than once.
func (s *Stager) Stage(data []byte) (*StagedFile, func() error, error) {
	f, err := os.CreateTemp(s.dir, "upload-"+uuid.NewString()+"-*.jpg")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	cleanup := func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete temp file %s: %w", filepath.Base(path), err)
		}
		return nil
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return nil, nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return &StagedFile{Path: path, Size: len(data)}, cleanup, nil
}
