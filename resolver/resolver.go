// Package resolver maps retrievable ids to stored media artifacts, such as
// exported text or thumbnails, and opens streams to read or write them.
package resolver

import (
	"io"
	"mime"

	"github.com/google/uuid"
)

// Resolvable is an artifact addressed by retrievable id and mime type.
type Resolvable interface {
	ID() uuid.UUID
	MimeType() string
	URL() string
	Exists() bool
	Open() (io.ReadCloser, error)
}

// Resolver locates and creates artifacts.
type Resolver interface {
	Resolve(id uuid.UUID, mimeType string) (Resolvable, error)
	// OpenOutputStream returns a writer for the artifact. The artifact is
	// visible once the writer is closed.
	OpenOutputStream(id uuid.UUID, mimeType string) (io.WriteCloser, error)
}

var knownExtensions = map[string]string{
	"text/plain":               ".txt",
	"application/json":         ".json",
	"application/octet-stream": ".bin",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/webp":               ".webp",
	"audio/wav":                ".wav",
	"audio/mpeg":               ".mp3",
	"video/mp4":                ".mp4",
	"model/gltf+json":          ".gltf",
}

// Extension returns the file extension used for a mime type.
func Extension(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	if ext, ok := knownExtensions[mimeType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
