// Package attachment prepares local files for sending as inline data.
package attachment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// MaxSize is the largest file accepted as inline data.
const MaxSize = 20 << 20

// DefaultMIMEType is used for unknown extensions.
const DefaultMIMEType = "application/octet-stream"

// ErrTooLarge is returned for files over MaxSize.
var ErrTooLarge = errors.New("attachment too large")

var mimeTypes = map[string]string{
	// Text
	"txt":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"html": "text/html",
	"css":  "text/css",
	"xml":  "application/xml",
	"json": "application/json",

	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"bmp":  "image/bmp",

	// Documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	// Audio
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"ogg": "audio/ogg",

	// Video
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",

	// Archives
	"zip": "application/zip",
	"rar": "application/vnd.rar",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
}

// MIMEType returns the MIME type for a file name based on its extension.
func MIMEType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return DefaultMIMEType
}

// Load reads a file into a blob.
func Load(path string) (model.FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FileBlob{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return model.FileBlob{}, fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > MaxSize {
		return model.FileBlob{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.FileBlob{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	name := filepath.Base(path)
	return model.FileBlob{
		Name:     name,
		MIMEType: MIMEType(name),
		Data:     data,
	}, nil
}

// LoadAll reads files in order.
func LoadAll(paths []string) ([]model.FileBlob, error) {
	blobs := make([]model.FileBlob, 0, len(paths))
	for _, p := range paths {
		b, err := Load(p)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

// Normalize fills in missing MIME types from the file name and rejects
// oversized blobs.
func Normalize(blobs []model.FileBlob) ([]model.FileBlob, error) {
	out := make([]model.FileBlob, len(blobs))
	for i, b := range blobs {
		if len(b.Data) > MaxSize {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, b.Name, len(b.Data))
		}
		if b.MIMEType == "" {
			b.MIMEType = MIMEType(b.Name)
		}
		out[i] = b
	}
	return out, nil
}
