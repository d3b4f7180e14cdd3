// Package upload holds the file acceptance rules shared by the input panel and
// the concept map endpoints.
package upload

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// PDFMimeType is the only attachment type the concept map accepts.
	PDFMimeType = "application/pdf"
	// MaxFileSize is the largest attachment accepted, in bytes (5 MiB).
	MaxFileSize int64 = 5 * 1024 * 1024
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// Rules describes which files may be attached to a submission.
type Rules struct {
	AllowedMimeType string
	MaxSize         int64
}

// DefaultRules returns the PDF-only, 5 MiB rules.
func DefaultRules() Rules {
	return Rules{
		AllowedMimeType: PDFMimeType,
		MaxSize:         MaxFileSize,
	}
}

// Check validates a declared MIME type and byte size. The type is compared as
// a plain string, the way a browser reports it; the size limit applies
// whatever the type.
func (r Rules) Check(mimeType string, size int64) error {
	if mimeType != r.AllowedMimeType {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
	if size > r.MaxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, r.MaxSize)
	}
	return nil
}

// Detect sniffs the MIME type of content.
func Detect(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detecting content type: %w", err)
	}
	return m.String(), nil
}

// DetectFile sniffs the MIME type of a file on disk.
func DetectFile(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting content type: %w", err)
	}
	return m.String(), nil
}

// IsPDF reports whether a sniffed MIME type is a PDF document.
func IsPDF(mimeType string) bool {
	m := mimetype.Lookup(PDFMimeType)
	return m != nil && m.Is(mimeType)
}
