// Package content holds the media payloads attached to a Retrievable.
//
// Small payloads live in memory (Text, Blob). Large ones are spilled to a
// Cache and shared between pipeline branches by reference counting: every
// holder calls Retain when it takes a reference and Release when it is done,
// and the backing file is removed when the count reaches zero.
package content

import (
	"bytes"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Type is the logical media type of a content element. Aggregators
// partition content by Type.
type Type string

const (
	TypeText  Type = "TEXT"
	TypeImage Type = "IMAGE"
	TypeAudio Type = "AUDIO"
	TypeVideo Type = "VIDEO"
	TypeMesh  Type = "MESH"
	TypeBlob  Type = "BLOB"
)

// TypeOf maps a mime type to a content type. Unknown types are blobs.
func TypeOf(mimeType string) Type {
	major, _, _ := strings.Cut(mimeType, "/")
	switch major {
	case "text":
		return TypeText
	case "image":
		return TypeImage
	case "audio":
		return TypeAudio
	case "video":
		return TypeVideo
	case "model":
		return TypeMesh
	default:
		return TypeBlob
	}
}

// Content is one media payload.
type Content interface {
	ID() uuid.UUID
	Type() Type
}

// Readable content can be streamed.
type Readable interface {
	Content
	MimeType() string
	Open() (io.ReadCloser, error)
}

// Shared content is reference counted. Retain adds a holder; Release drops
// one and frees the payload when none remain.
type Shared interface {
	Content
	Retain()
	Release() error
}

// Retain adds a holder to c if it is shared.
func Retain(c Content) {
	if s, ok := c.(Shared); ok {
		s.Retain()
	}
}

// Release drops a holder from c if it is shared.
func Release(c Content) error {
	if s, ok := c.(Shared); ok {
		return s.Release()
	}
	return nil
}

// Text is in-memory text content.
type Text struct {
	id   uuid.UUID
	text string
}

// NewText creates text content with a fresh id.
func NewText(text string) *Text {
	return &Text{id: uuid.New(), text: text}
}

func (t *Text) ID() uuid.UUID    { return t.id }
func (t *Text) Type() Type       { return TypeText }
func (t *Text) MimeType() string { return "text/plain" }
func (t *Text) Text() string     { return t.text }

// Open returns a reader over the text.
func (t *Text) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(t.text)), nil
}

// Blob is an in-memory binary payload.
type Blob struct {
	id   uuid.UUID
	typ  Type
	mime string
	data []byte
}

// NewBlob creates binary content with a fresh id. data is not copied.
func NewBlob(typ Type, mime string, data []byte) *Blob {
	return &Blob{id: uuid.New(), typ: typ, mime: mime, data: data}
}

func (b *Blob) ID() uuid.UUID    { return b.id }
func (b *Blob) Type() Type       { return b.typ }
func (b *Blob) MimeType() string { return b.mime }
func (b *Blob) Bytes() []byte    { return b.data }

// Open returns a reader over the payload.
func (b *Blob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
