package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concept-map/backend/internal/models"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// Store defines the interface for uploaded document storage.
type Store interface {
	Save(name, mimeType string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	MarkProcessed(id string) error
	Cleanup(maxAge time.Duration) (int, error)
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
	now       func() time.Time
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
		now:       time.Now,
	}, nil
}

// Save writes a document under a fresh id. The original name is kept as
// metadata only and never used as a path.
func (s *LocalStore) Save(name, mimeType string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := s.path(id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       filepath.Base(name),
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: s.now(),
		Status:     models.FileStatusUploaded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return info, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the path of a stored file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return s.path(id), nil
}

// MarkProcessed records that a file has been fed to the generator.
func (s *LocalStore) MarkProcessed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = models.FileStatusProcessed
	return nil
}

// Cleanup deletes files uploaded more than maxAge ago and returns how many
// were removed.
func (s *LocalStore) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	var errs []error
	for id, info := range s.files {
		if !info.UploadedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
			continue
		}
		delete(s.files, id)
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.uploadDir, id+".pdf")
}
