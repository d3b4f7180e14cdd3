package models

import "time"

// File statuses.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusProcessed = "processed"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "processed"
}
