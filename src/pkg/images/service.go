package images

import (
	"context"
	"net/http"
	"strings"

	"github.com/q-controller/imagedrop/src/pkg/images/storage"
)

// Reference is what a client receives for a stored blob.
type Reference struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Ingest decodes payload and stores it. Every failure is an *Error.
func Ingest(ctx context.Context, store storage.BlobStore, payload string) (*storage.Blob, error) {
	data, decodeErr := DecodeDataURI(payload)
	if decodeErr != nil {
		return nil, &Error{Kind: KindFormat, Err: decodeErr}
	}

	blob, putErr := store.Put(ctx, data)
	if putErr != nil {
		return nil, &Error{Kind: KindIO, Err: putErr}
	}
	return blob, nil
}

// BaseURL returns the origin a request was addressed to, including the
// trailing slash, e.g. "http://localhost:8000/". X-Forwarded-Proto and
// X-Forwarded-Host, when present, take precedence over the connection.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}
	host := r.Host
	if forwarded := firstForwarded(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = forwarded
	}
	return scheme + "://" + host + "/"
}

// firstForwarded returns the hop closest to the client in a comma-separated
// forwarding header.
func firstForwarded(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

// PublicURL joins a base URL, the static mount and a filename.
func PublicURL(base, mount, filename string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.Trim(mount, "/") + "/" + filename
}
