package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
)

const (
	// MaxUploadBytes caps a single uploaded image
	MaxUploadBytes = 10 * 1024 * 1024

	InvalidFileMessage = "Please select an image file."
	UploadedHint       = "custom image"
	fallbackName       = "Uploaded Image"
)

// NewUpload builds a picture entry from an uploaded file. The declared media
// type must be an image type; nothing is created otherwise.
func NewUpload(filename, mediaType string, data []byte, now time.Time) (models.PictureEntry, error) {
	if !strings.HasPrefix(mediaType, "image/") {
		return models.PictureEntry{}, &outcome.ValidationError{Message: InvalidFileMessage}
	}
	if len(data) == 0 {
		return models.PictureEntry{}, &outcome.ValidationError{Message: InvalidFileMessage}
	}
	if len(data) > MaxUploadBytes {
		return models.PictureEntry{}, &outcome.ValidationError{Message: fmt.Sprintf("File too large (max %dMB)", MaxUploadBytes/(1024*1024))}
	}

	payload := models.ImagePayload{MediaType: mediaType, Data: data}
	return models.PictureEntry{
		ID:          UploadID(now),
		Description: DisplayName(filename),
		ImageSource: payload.DataURI(),
		ImageHint:   UploadedHint,
	}, nil
}

// UploadID returns uploaded-<unix millis>-<random>, unique even for uploads
// within the same millisecond
func UploadID(now time.Time) string {
	return fmt.Sprintf("uploaded-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// DisplayName is the part of the file name before the first dot
func DisplayName(filename string) string {
	if idx := strings.LastIndexAny(filename, `/\`); idx != -1 {
		filename = filename[idx+1:]
	}
	name, _, _ := strings.Cut(filename, ".")
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackName
	}
	return name
}
