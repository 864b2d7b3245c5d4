// Package storage keeps uploaded documents on disk under opaque ids. It is
// a collaborator of the core: the queue references documents by file id
// only and never reads their contents.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save stores the document under a fresh id, keeping the original
// extension so print drivers can infer the format.
func (s *DiskStore) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	fileID := uuid.NewString() + ext

	f, err := os.Create(s.Path(fileID))
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(s.Path(fileID))
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return fileID, nil
}

// Path returns the on-disk location for fileID. The id is sanitized to its
// base name so a crafted id cannot escape the store directory.
func (s *DiskStore) Path(fileID string) string {
	return filepath.Join(s.dir, filepath.Base(fileID))
}

func (s *DiskStore) Open(fileID string) (*os.File, error) {
	f, err := os.Open(s.Path(fileID))
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(fileID string) error {
	if err := os.Remove(s.Path(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
