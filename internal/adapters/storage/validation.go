package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the MIME types accepted for report image uploads.
// The extraction model only consumes raster images, plus PDF for scanned
// lab reports.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}

// IsImageContentType checks if the content type is a raster image. PDF report
// scans skip EXIF inspection.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
