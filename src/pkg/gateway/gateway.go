package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/q-controller/imagedrop/src/pkg/events"
	"github.com/q-controller/imagedrop/src/pkg/frontend"
	"github.com/q-controller/imagedrop/src/pkg/images"
	"github.com/q-controller/imagedrop/src/pkg/images/storage"
	"github.com/q-controller/imagedrop/src/pkg/metrics"
	"github.com/q-controller/imagedrop/src/pkg/settings"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Options struct {
	Config    *settings.Config
	Store     storage.BlobStore
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Publisher *events.Publisher
}

// New builds the HTTP handler: the upload API on a runtime mux, static file
// mounts, metrics, docs and the event stream, all behind CORS.
func New(opts Options) (http.Handler, error) {
	if opts.Config == nil || opts.Store == nil {
		return nil, errors.New("config and store are required")
	}
	config := opts.Config

	imagesHandler, handlerErr := images.CreateHandler(opts.Store, opts.Metrics, images.HandlerConfig{
		Mount:          config.Storage.Mount,
		PublicBaseURL:  config.Server.PublicBaseURL,
		MaxUploadBytes: config.Server.MaxUploadBytes,
		UploadTimeout:  config.Server.UploadTimeout,
	})
	if handlerErr != nil {
		return nil, fmt.Errorf("failed to create images handler: %w", handlerErr)
	}

	api := runtime.NewServeMux(runtime.WithMiddlewares(logRequests))
	routes := []struct {
		method, path string
		handler      runtime.HandlerFunc
	}{
		{http.MethodPost, "/upload", imagesHandler.Post},
		{http.MethodGet, PathPrefix, imagesHandler.Get},
		{http.MethodGet, "/healthz", healthz},
	}
	for _, route := range routes {
		if err := api.HandlePath(route.method, route.path, route.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", route.method, route.path, err)
		}
	}

	spec, specErr := GenerateOpenAPISpecs()
	if specErr != nil {
		return nil, specErr
	}

	mux := http.NewServeMux()
	mux.Handle("/upload", api)
	mux.Handle(PathPrefix, api)
	mux.Handle("/healthz", api)
	mux.Handle("GET /{$}", frontend.IndexHandler(config.Storage.StaticDir))
	mux.Handle("GET /static/", frontend.StaticHandler("/static", config.Storage.StaticDir))
	mux.Handle("GET "+config.Storage.Mount+"/", frontend.StaticHandler(config.Storage.Mount, opts.Store.Root()))
	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		if _, err := w.Write([]byte(spec)); err != nil {
			slog.Warn("Failed to write OpenAPI spec", "error", err)
		}
	})
	mux.Handle("GET /docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Publisher != nil {
		mux.Handle("GET /v1/events", opts.Publisher)
	}

	return cors(mux), nil
}

func healthz(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		slog.Warn("Failed to write health response", "error", err)
	}
}
