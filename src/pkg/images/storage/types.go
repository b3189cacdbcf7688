package storage

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidName = errors.New("invalid blob name")

// BlobStore abstracts the managed upload directory
type BlobStore interface {
	Put(ctx context.Context, data []byte) (*Blob, error)
	Resolve(name string) (string, error)
	List() ([]Blob, error)
	Root() string
}

// Blob describes one stored file. Everything but Name is derived from the filesystem.
type Blob struct {
	Name       string    `json:"filename"`
	Path       string    `json:"-"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}
