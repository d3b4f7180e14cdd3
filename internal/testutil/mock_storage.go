// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/storage"
)

// MockStorage implements storage.Store on disk under a temp directory, so
// handlers that read the stored PDF back see real files.
type MockStorage struct {
	mu       sync.RWMutex
	dir      string
	files    map[string]*models.FileInfo
	SaveErr  error
	saveCall int
}

// NewMockStorage creates a mock storage writing into dir.
func NewMockStorage(dir string) *MockStorage {
	return &MockStorage{
		dir:   dir,
		files: make(map[string]*models.FileInfo),
	}
}

func (m *MockStorage) Save(name, mimeType string, r io.Reader) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCall++
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	id := generateTestID()
	if err := os.WriteFile(filepath.Join(m.dir, id), data, 0644); err != nil {
		return nil, err
	}
	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}
	m.files[id] = file
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return file, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.FileInfo
	for _, file := range m.files {
		files = append(files, file)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return storage.ErrNotFound
	}
	delete(m.files, id)
	return os.Remove(filepath.Join(m.dir, id))
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.files[id]; !ok {
		return "", storage.ErrNotFound
	}
	return filepath.Join(m.dir, id), nil
}

func (m *MockStorage) MarkProcessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return storage.ErrNotFound
	}
	file.Status = models.FileStatusProcessed
	return nil
}

func (m *MockStorage) Cleanup(time.Duration) (int, error) {
	return 0, nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// SaveCalls returns how many times Save was invoked
func (m *MockStorage) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCall
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
