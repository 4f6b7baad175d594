package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tendant/ecosort-api/pkg/recycling"
)

// DocumentSuffix is appended to a region key to form its file name
const DocumentSuffix = "-summary.txt"

// FilesystemStore reads instruction documents from <baseDir>/<key>-summary.txt
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates a store rooted at baseDir. The directory must exist.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", abs)
	}

	return &FilesystemStore{
		baseDir: abs,
	}, nil
}

// path maps a key to its document path. Keys that could escape baseDir are rejected.
func (fs *FilesystemStore) path(key string) (string, bool) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", false
	}
	path := filepath.Join(fs.baseDir, key+DocumentSuffix)

	// Security: prevent directory traversal
	if filepath.Dir(path) != fs.baseDir {
		return "", false
	}
	return path, true
}

// Exists checks if a document exists for the given key
func (fs *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	path, ok := fs.path(key)
	if !ok {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat document: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// Read returns the document for the given key, or recycling.ErrInstructionNotFound
func (fs *FilesystemStore) Read(ctx context.Context, key string) (string, error) {
	path, ok := fs.path(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", recycling.ErrInstructionNotFound, key)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", recycling.ErrInstructionNotFound, key)
		}
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return string(data), nil
}

// List returns the sorted keys of all documents in the store
func (fs *FilesystemStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, DocumentSuffix) {
			continue
		}
		if key := strings.TrimSuffix(name, DocumentSuffix); key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
