package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/gallery"
	"github.com/yourorg/vision-showcase/internal/types"
)

const msgUnavailable = "Server configuration error. Could not initialize backend services."

type Handler struct {
	svc *gallery.Service
	log *zap.Logger
}

func NewHandler(svc *gallery.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// ListImages serves GET /api/images.
func (h *Handler) ListImages(c *gin.Context) {
	entries, err := h.svc.Recent(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to fetch images", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetStatus serves GET /api/status?filename=.
func (h *Handler) GetStatus(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "Filename is required"})
		return
	}

	status, err := h.svc.Status(c.Request.Context(), filename)
	if err != nil {
		h.fail(c, "Failed to check status", err)
		return
	}
	c.JSON(http.StatusOK, types.StatusResponse{Status: status})
}

// CreateUploadURL serves POST /api/upload.
func (h *Handler) CreateUploadURL(c *gin.Context) {
	var req types.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "filename and contentType are required",
			Details: err.Error(),
		})
		return
	}

	signed, err := h.svc.IssueUploadURL(c.Request.Context(), req.Filename, req.ContentType)
	if err != nil {
		h.fail(c, "Failed to create signed URL", err)
		return
	}
	c.JSON(http.StatusOK, types.UploadResponse{
		URL:       signed.URL,
		ExpiresAt: signed.Expires,
		Headers:   signed.Headers,
	})
}

// Health reports 503 with the bootstrap error until backend clients exist.
func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, gallery.ErrValidation):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "Invalid request", Details: err.Error()})
		return
	case errors.Is(err, gallery.ErrUnavailable):
		msg = msgUnavailable
	}
	h.log.Error(msg, zap.String("route", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: msg, Details: err.Error()})
}
