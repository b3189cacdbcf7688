package images

import (
	"errors"
	"fmt"
)

// Kind classifies why an ingestion failed.
type Kind string

const (
	KindFormat Kind = "format"
	KindIO     Kind = "io"
)

var (
	ErrMissingSeparator = errors.New("payload has no ',' separating metadata from data")
	ErrInvalidBase64    = errors.New("payload data is not valid base64")
)

// Error is returned by Ingest. Err keeps the underlying cause for errors.Is.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindIO for errors that did not come from Ingest.
func KindOf(err error) Kind {
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind
	}
	return KindIO
}
