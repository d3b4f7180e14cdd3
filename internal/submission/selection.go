package submission

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/concept-map/backend/internal/upload"
)

// Selection is a file picked for attachment. Name, MimeType and Size are what
// the picker reports; Open yields the content at submit time.
type Selection struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FileState is the externally visible part of a selection.
type FileState struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

func (s *Selection) state() *FileState {
	if s == nil {
		return nil
	}
	return &FileState{Name: s.Name, MimeType: s.MimeType, Size: s.Size}
}

// BytesSelection wraps in-memory content as a selection.
func BytesSelection(name, mimeType string, data []byte) *Selection {
	return &Selection{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PathSelection describes a file on disk. The MIME type is sniffed from the
// content, so a PDF renamed to .txt is still reported as a PDF.
func PathSelection(path string) (*Selection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading file info: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := upload.DetectFile(path)
	if err != nil {
		return nil, err
	}
	if upload.IsPDF(mimeType) {
		mimeType = upload.PDFMimeType
	}

	return &Selection{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
