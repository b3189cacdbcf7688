package frontend

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/q-controller/imagedrop/src/pkg/utils"
)

//go:embed generated/*
var webFS embed.FS

// IndexHandler serves <staticDir>/index.html, or the bundled page when the
// static directory has none.
func IndexHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
		http.ServeFileFS(w, r, webFS, "generated/index.html")
	}
}

// StaticHandler serves files from dir under prefix. Directories and hidden
// path segments are answered with 404.
func StaticHandler(prefix, dir string) http.Handler {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	return http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(dir)}))
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	if utils.HasHiddenSegment(strings.TrimPrefix(name, "/")) {
		return nil, fs.ErrNotExist
	}

	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, statErr := file.Stat()
	if statErr != nil || info.IsDir() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("Failed to close file", "error", closeErr)
		}
		return nil, errors.Join(fs.ErrNotExist, statErr)
	}
	return file, nil
}
