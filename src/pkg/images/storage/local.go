package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/q-controller/imagedrop/src/pkg/utils"
)

const (
	// DefaultExtension is appended to every name unless detection is enabled.
	DefaultExtension = ".png"
	stagingDirName   = ".incoming"
	// DefaultStagingTTL is how old a staging file must be before it is
	// considered abandoned. Younger files may belong to a live writer.
	DefaultStagingTTL = time.Hour
)

var sniffedExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

var _ BlobStore = (*LocalFilesystemBackend)(nil)

type Option func(*LocalFilesystemBackend)

// WithStagingTTL sets the age after which leftover staging files are purged on open.
func WithStagingTTL(ttl time.Duration) Option {
	return func(b *LocalFilesystemBackend) {
		b.stagingTTL = ttl
	}
}

// WithExtensionDetection names blobs after their sniffed content type
// instead of always using DefaultExtension.
func WithExtensionDetection(enabled bool) Option {
	return func(b *LocalFilesystemBackend) {
		b.detectExtension = enabled
	}
}

// LocalFilesystemBackend implements BlobStore on a single directory. The
// directory is the index: a blob's name is its key.
type LocalFilesystemBackend struct {
	root            string
	staging         string
	detectExtension bool
	stagingTTL      time.Duration
}

func NewLocalFilesystemBackend(root string, opts ...Option) (*LocalFilesystemBackend, error) {
	absRoot, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", absErr)
	}

	staging := filepath.Join(absRoot, stagingDirName)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	b := &LocalFilesystemBackend{
		root:       absRoot,
		staging:    staging,
		stagingTTL: DefaultStagingTTL,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.purgeStaging(time.Now())
	return b, nil
}

// purgeStaging drops writes interrupted by a crash. Another process may share
// the directory, so only entries older than the staging TTL are removed.
func (b *LocalFilesystemBackend) purgeStaging(now time.Time) {
	entries, err := os.ReadDir(b.staging)
	if err != nil {
		slog.Warn("failed to list staging directory", "path", b.staging, "error", err)
		return
	}
	cutoff := now.Add(-b.stagingTTL)
	for _, entry := range entries {
		info, infoErr := entry.Info()
		if infoErr != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if rmErr := os.RemoveAll(filepath.Join(b.staging, entry.Name())); rmErr != nil {
			slog.Warn("failed to remove stale staging file", "name", entry.Name(), "error", rmErr)
		}
	}
}

func (b *LocalFilesystemBackend) Root() string {
	return b.root
}

func (b *LocalFilesystemBackend) extension(data []byte) string {
	if !b.detectExtension {
		return DefaultExtension
	}
	contentType := http.DetectContentType(data)
	if ext, ok := sniffedExtensions[contentType]; ok {
		return ext
	}
	return DefaultExtension
}

// Put writes data under a fresh name. The bytes are staged in a hidden
// subdirectory and renamed into place, so a blob is either complete or absent.
func (b *LocalFilesystemBackend) Put(ctx context.Context, data []byte) (*Blob, error) {
	name := uuid.NewString() + b.extension(data)
	stagingPath := filepath.Join(b.staging, name)
	finalPath := filepath.Join(b.root, name)

	file, createErr := os.OpenFile(stagingPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create file: %w", createErr)
	}

	renamed := false
	defer func() {
		if renamed {
			return
		}
		if rmErr := os.Remove(stagingPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Error("failed to cleanup staging file", "name", name, "error", rmErr)
		}
	}()

	writeErr := writeAndSync(file, data)
	if closeErr := file.Close(); closeErr != nil {
		writeErr = errors.Join(writeErr, closeErr)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write data: %w", writeErr)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("upload aborted: %w", ctxErr)
	}

	if renameErr := os.Rename(stagingPath, finalPath); renameErr != nil {
		return nil, fmt.Errorf("failed to publish file: %w", renameErr)
	}
	renamed = true

	info, statErr := os.Stat(finalPath)
	if statErr != nil {
		return nil, fmt.Errorf("failed to stat stored file: %w", statErr)
	}

	return &Blob{
		Name:       name,
		Path:       finalPath,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

func writeAndSync(file *os.File, data []byte) error {
	if _, err := file.Write(data); err != nil {
		return err
	}
	return file.Sync()
}

// Resolve maps a blob name to its path. It does not check existence.
func (b *LocalFilesystemBackend) Resolve(name string) (string, error) {
	if name == "" || utils.IsHidden(name) || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.root, name), nil
}

// List returns stored blobs, newest first.
func (b *LocalFilesystemBackend) List() ([]Blob, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	blobs := make([]Blob, 0, len(entries))
	for _, entry := range entries {
		if utils.IsHidden(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			// Removed between ReadDir and Info
			continue
		}
		blobs = append(blobs, Blob{
			Name:       entry.Name(),
			Path:       filepath.Join(b.root, entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(blobs, func(i, j int) bool {
		if blobs[i].ModifiedAt.Equal(blobs[j].ModifiedAt) {
			return blobs[i].Name < blobs[j].Name
		}
		return blobs[i].ModifiedAt.After(blobs[j].ModifiedAt)
	})
	return blobs, nil
}
