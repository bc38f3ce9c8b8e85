package http

import (
	"io"
	"net/http"
	"path/filepath"
	"slices"

	"github.com/gorilla/mux"

	"familytree-backend/internal/logger"
	"familytree-backend/internal/service"
	"familytree-backend/internal/storage"
)

type GalleryHandler struct {
	gallery service.GalleryService
}

func NewGalleryHandler(gallery service.GalleryService) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

type uploadURLRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

func (h *GalleryHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ticket, err := h.gallery.GetUploadURL(r.Context(), userIDFromContext(r.Context()), req.Filename, req.ContentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// StorageHandler serves the local upload and download URLs handed out by mock storage.
type StorageHandler struct {
	files        storage.StorageInterface
	allowedTypes []string
	maxBytes     int64
}

func NewStorageHandler(files storage.StorageInterface, allowedTypes []string, maxFileSizeMB int64) *StorageHandler {
	if len(allowedTypes) == 0 {
		allowedTypes = []string{"image/jpeg", "image/png", "image/gif"}
	}
	if maxFileSizeMB <= 0 {
		maxFileSizeMB = 10
	}
	return &StorageHandler{files: files, allowedTypes: allowedTypes, maxBytes: maxFileSizeMB << 20}
}

// HandleUpload handles HTTP PUT requests to mock presigned URLs
func (h *StorageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeMessage(w, http.StatusBadRequest, "missing key parameter")
		return
	}
	if !slices.Contains(h.allowedTypes, r.Header.Get("Content-Type")) {
		writeMessage(w, http.StatusBadRequest, "invalid content type")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := h.files.SaveFile(key, body); err != nil {
		logger.Warn("Mock upload failed", "key", key, "error", err)
		writeMessage(w, http.StatusBadRequest, "failed to save file")
		return
	}

	// mimic an S3 PUT response
	w.Header().Set("ETag", `"mock-etag-success"`)
	w.WriteHeader(http.StatusOK)
}

// HandleDownload streams a stored file. The key may contain slashes.
func (h *StorageHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	file, err := h.files.ReadFile(key)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "file not found")
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Download interrupted", "key", key, "error", err)
	}
}
