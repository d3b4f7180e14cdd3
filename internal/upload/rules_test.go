package upload

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_Check(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		mimeType string
		size     int64
		wantErr  error
	}{
		{name: "small pdf", mimeType: "application/pdf", size: 1024},
		{name: "pdf at limit", mimeType: "application/pdf", size: MaxFileSize},
		{name: "pdf over limit", mimeType: "application/pdf", size: MaxFileSize + 1, wantErr: ErrFileTooLarge},
		{name: "text file", mimeType: "text/plain", size: 10, wantErr: ErrUnsupportedType},
		{name: "empty type", mimeType: "", size: 10, wantErr: ErrUnsupportedType},
		{name: "type with parameters", mimeType: "application/pdf; charset=binary", size: 10, wantErr: ErrUnsupportedType},
		{name: "oversized non-pdf", mimeType: "image/png", size: MaxFileSize * 2, wantErr: ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rules.Check(tt.mimeType, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRules_OversizedRejectedRegardlessOfType(t *testing.T) {
	rules := Rules{AllowedMimeType: "image/png", MaxSize: 100}
	err := rules.Check("image/png", 101)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDetect(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

	mimeType, err := Detect(bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.True(t, IsPDF(mimeType))

	mimeType, err = Detect(bytes.NewReader([]byte("just some text")))
	require.NoError(t, err)
	assert.False(t, IsPDF(mimeType))
}
