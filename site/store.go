package site

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrIsDirectory = errors.New("path is a directory")
	ErrOutsideRoot = errors.New("path escapes the site root")
	ErrNotFound    = errors.New("document not found")
)

// FileStore reads and writes documents below a site root. Paths are
// slash-separated and relative to the root.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir, creating the directory if it
// doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create site directory: %w", err)
	}

	return &FileStore{root: dir}, nil
}

// Root returns the site root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path resolves a site-relative path to a filesystem path.
func (s *FileStore) Path(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return filepath.Join(s.root, local), nil
}

// Exists reports whether a document exists at rel.
func (s *FileStore) Exists(rel string) (bool, error) {
	p, err := s.Path(rel)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}
	return true, nil
}

// Read returns the contents of the document at rel. A missing document is
// reported as ErrNotFound.
func (s *FileStore) Read(rel string) (string, error) {
	p, err := s.Path(rel)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write replaces the document at rel, creating parent directories as
// needed. Writing over a directory fails with ErrIsDirectory.
func (s *FileStore) Write(rel, content string) error {
	return s.WriteBytes(rel, []byte(content))
}

// WriteBytes is Write for binary content.
func (s *FileStore) WriteBytes(rel string, data []byte) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}

	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}
