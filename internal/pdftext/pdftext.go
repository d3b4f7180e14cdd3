// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned for documents without an extractable text layer,
// for example scanned images.
var ErrNoText = errors.New("pdf contains no extractable text")

// ExtractFile returns the concatenated text of every page of the PDF at path.
func ExtractFile(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()
	return extract(r)
}

// Extract reads a PDF from memory.
func Extract(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	return extract(r)
}

func extract(r *pdf.Reader) (text string, err error) {
	// The reader panics on some malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reading pdf text: %v", p)
		}
	}()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	if len(bytes.TrimSpace(buf.Bytes())) == 0 {
		return "", ErrNoText
	}
	return buf.String(), nil
}

// ExtractReader buffers r and extracts its text.
func ExtractReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	return Extract(data)
}
