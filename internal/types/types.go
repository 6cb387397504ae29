package types

import (
	"fmt"
	"time"

	"github.com/yourorg/vision-showcase/internal/models"
)

// UploadRequest is the body of POST /api/upload.
type UploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// UploadResponse carries a write-signed URL. Headers lists the signed headers
// the client must send with its PUT.
type UploadResponse struct {
	URL       string            `json:"url"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Status is the processing state of an uploaded object.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// ParseStatus validates a status string received over the wire.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status Status `json:"status"`
}

// ImageEntry is one element of GET /api/images: the analysis document merged
// with a read-signed URL for its object.
type ImageEntry struct {
	models.AnalysisDocument
	ImageURL string `json:"imageUrl"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
