package service

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/storage"
)

const uploadURLExpiry = 15 * time.Minute

var defaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif"}

type UploadTicket struct {
	StorageKey string    `json:"storage_key"`
	UploadURL  string    `json:"upload_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type galleryService struct {
	files        storage.StorageInterface
	allowedTypes []string
	now          Clock
}

func NewGalleryService(files storage.StorageInterface, allowedTypes []string, clock Clock) GalleryService {
	if len(allowedTypes) == 0 {
		allowedTypes = defaultAllowedTypes
	}
	if clock == nil {
		clock = systemClock
	}
	return &galleryService{files: files, allowedTypes: allowedTypes, now: clock}
}

// GetUploadURL reserves a fresh storage key for userID and returns where to PUT the file.
// The key is then submitted as the storage_key of a gallery request.
func (s *galleryService) GetUploadURL(ctx context.Context, userID, filename, contentType string) (*UploadTicket, error) {
	if !slices.Contains(s.allowedTypes, contentType) {
		return nil, &domain.ValidationError{Field: "content_type", Reason: fmt.Sprintf("%q is not an allowed image type", contentType)}
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	key := fmt.Sprintf("gallery/%s/%s%s", userID, uuid.NewString(), ext)

	url, err := s.files.GeneratePresignedUploadURL(ctx, key, contentType, uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate upload url: %w", err)
	}
	logger.Info("Issued gallery upload url", "userID", userID, "key", key)

	return &UploadTicket{
		StorageKey: key,
		UploadURL:  url,
		ExpiresAt:  s.now().Add(uploadURLExpiry),
	}, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
