package resolver

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Name is the registry name of the disk resolver.
const Name = "disk"

// Disk stores artifacts as <id><ext> files below a base directory.
type Disk struct {
	basePath string
}

// NewDisk creates a disk resolver, creating basePath if needed.
func NewDisk(basePath string) (*Disk, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolver: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("resolver: create base directory: %w", err)
	}
	return &Disk{basePath: abs}, nil
}

// BasePath returns the absolute artifact directory.
func (d *Disk) BasePath() string { return d.basePath }

func (d *Disk) path(id uuid.UUID, mimeType string) string {
	return filepath.Join(d.basePath, id.String()+Extension(mimeType))
}

// Resolve returns the artifact for id. It need not exist yet.
func (d *Disk) Resolve(id uuid.UUID, mimeType string) (Resolvable, error) {
	return &diskFile{id: id, mime: mimeType, path: d.path(id, mimeType)}, nil
}

// OpenOutputStream writes to a temporary file that replaces the artifact
// on Close.
func (d *Disk) OpenOutputStream(id uuid.UUID, mimeType string) (io.WriteCloser, error) {
	target := d.path(id, mimeType)
	f, err := os.CreateTemp(d.basePath, ".partial-*")
	if err != nil {
		return nil, fmt.Errorf("resolver: create file: %w", err)
	}
	return &atomicFile{File: f, target: target}, nil
}

// Delete removes the artifact. A missing artifact is not an error.
func (d *Disk) Delete(id uuid.UUID, mimeType string) error {
	if err := os.Remove(d.path(id, mimeType)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resolver: delete file: %w", err)
	}
	return nil
}

type diskFile struct {
	id   uuid.UUID
	mime string
	path string
}

func (f *diskFile) ID() uuid.UUID    { return f.id }
func (f *diskFile) MimeType() string { return f.mime }

func (f *diskFile) URL() string {
	return (&url.URL{Scheme: "file", Path: f.path}).String()
}

func (f *diskFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *diskFile) Open() (io.ReadCloser, error) {
	r, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("resolver: artifact not found: %s", f.id)
		}
		return nil, fmt.Errorf("resolver: open file: %w", err)
	}
	return r, nil
}

type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return fmt.Errorf("resolver: write file: %w", err)
	}
	if err := os.Rename(f.File.Name(), f.target); err != nil {
		_ = os.Remove(f.File.Name())
		return fmt.Errorf("resolver: publish file: %w", err)
	}
	return nil
}
