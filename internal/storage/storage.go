// Package storage pushes uploaded files to a remote object store.
package storage

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"path/filepath"
	"strings"

	"snapfeed/internal/models"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Uploader sends one file, authorized by ticket, to the object store.
// Implementations do not retry.
type Uploader interface {
	Upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error)
}

// Detect classifies file content the way the object store reports it: decodable
// images are "image", video containers are "video", everything else is "raw".
// The returned format is the decoder name or the file extension.
func Detect(name string, content []byte) (models.ResourceKind, string) {
	if _, format, err := image.DecodeConfig(bytes.NewReader(content)); err == nil {
		return models.ResourceImage, format
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if strings.HasPrefix(http.DetectContentType(content), "video/") {
		return models.ResourceVideo, ext
	}
	switch ext {
	case "mp4", "mov", "webm", "mkv", "avi", "m4v":
		return models.ResourceVideo, ext
	}
	return models.ResourceRaw, ext
}

// ContentType returns the declared content type, or one sniffed from content.
func ContentType(file models.UploadFile) string {
	if file.ContentType != "" && file.ContentType != "application/octet-stream" {
		return file.ContentType
	}
	return http.DetectContentType(file.Content)
}
