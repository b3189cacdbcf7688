package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/q-controller/imagedrop/src/pkg/images/storage"
	"github.com/q-controller/imagedrop/src/pkg/metrics"
)

const (
	defaultListLimit = 100
	statusFailed     = "failed"
)

type uploadRequest struct {
	ImageData string `json:"image_data"`
}

type failureResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Kind   Kind   `json:"kind"`
}

type listedImage struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type HandlerConfig struct {
	// Mount is the URL prefix the upload directory is served under.
	Mount string
	// PublicBaseURL overrides the request origin when set.
	PublicBaseURL  string
	MaxUploadBytes int64
	UploadTimeout  time.Duration
}

type Handler struct {
	store   storage.BlobStore
	metrics *metrics.Metrics
	config  HandlerConfig
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.config.PublicBaseURL != "" {
		return h.config.PublicBaseURL
	}
	return BaseURL(r)
}

// Post accepts {"image_data": "<prefix>,<base64>"}. Failures are reported in
// the body with a 200 status so existing clients keep checking for "error".
func (h *Handler) Post(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := time.Now()
	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}

	var req uploadRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		h.fail(w, started, &Error{Kind: KindFormat, Err: fmt.Errorf("failed to parse request body: %w", decodeErr)})
		return
	}

	ctx := r.Context()
	if h.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.UploadTimeout)
		defer cancel()
	}

	blob, ingestErr := Ingest(ctx, h.store, req.ImageData)
	if ingestErr != nil {
		h.fail(w, started, ingestErr)
		return
	}

	h.metrics.ObserveUpload(metrics.StatusSuccess, int(blob.Size), time.Since(started))
	slog.Debug("Stored upload", "filename", blob.Name, "size", blob.Size)

	writeJSON(w, &Reference{
		URL:      PublicURL(h.baseURL(r), h.config.Mount, blob.Name),
		Filename: blob.Name,
	})
}

func (h *Handler) fail(w http.ResponseWriter, started time.Time, err error) {
	kind := KindOf(err)
	h.metrics.ObserveUpload(metrics.StatusFailed, 0, time.Since(started))
	if kind == KindIO {
		slog.Error("Failed to store upload", "error", err)
	} else {
		slog.Debug("Rejected upload", "error", err)
	}

	message := err.Error()
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		message = ingestErr.Err.Error()
	}

	writeJSON(w, &failureResponse{
		Error:  message,
		Status: statusFailed,
		Kind:   kind,
	})
}

// Get lists stored images, newest first. ?limit=N caps the result.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultListLimit
	if bindErr := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); bindErr != nil {
		http.Error(w, fmt.Sprintf("Invalid limit parameter: %s", bindErr.Error()), http.StatusBadRequest)
		return
	}
	if limit <= 0 {
		http.Error(w, "Invalid limit parameter: must be positive", http.StatusBadRequest)
		return
	}

	blobs, listErr := h.store.List()
	if listErr != nil {
		http.Error(w, "Failed to list images: "+listErr.Error(), http.StatusInternalServerError)
		return
	}
	if len(blobs) > limit {
		blobs = blobs[:limit]
	}

	base := h.baseURL(r)
	listed := make([]listedImage, 0, len(blobs))
	for _, blob := range blobs {
		listed = append(listed, listedImage{
			Filename:   blob.Name,
			URL:        PublicURL(base, h.config.Mount, blob.Name),
			Size:       blob.Size,
			ModifiedAt: blob.ModifiedAt,
		})
	}

	writeJSON(w, map[string][]listedImage{"images": listed})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

func CreateHandler(store storage.BlobStore, m *metrics.Metrics, config HandlerConfig) (*Handler, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	return &Handler{
		store:   store,
		metrics: m,
		config:  config,
	}, nil
}
