package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/q-controller/imagedrop/src/pkg/metrics"
)

type SweepResult struct {
	Scanned  int
	Deleted  int
	Skipped  int
	Failed   int
	Duration time.Duration
	// Err is set only when the directory itself could not be listed.
	Err error
}

// Sweeper deletes regular files whose modification time is older than maxAge.
type Sweeper struct {
	root    string
	maxAge  time.Duration
	metrics *metrics.Metrics
	remove  func(string) error
}

type SweeperOption func(*Sweeper)

func WithMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func NewSweeper(store BlobStore, maxAge time.Duration, opts ...SweeperOption) (*Sweeper, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", maxAge)
	}
	s := &Sweeper{
		root:   store.Root(),
		maxAge: maxAge,
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep walks the top level of the upload directory once. A file is deleted
// when its modification time is strictly before now-maxAge, so a file exactly
// maxAge old survives. Failures on single entries are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) SweepResult {
	started := time.Now()
	cutoff := now.Add(-s.maxAge)
	slog.Info("Running retention sweep", "directory", s.root, "cutoff", cutoff.Format(time.RFC3339))

	result := SweepResult{}
	entries, readErr := os.ReadDir(s.root)
	if readErr != nil {
		slog.Error("failed to list upload directory", "directory", s.root, "error", readErr)
		result.Err = readErr
		result.Duration = time.Since(started)
		return result
	}

	remaining := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			slog.Warn("retention sweep interrupted", "error", ctx.Err())
			result.Err = ctx.Err()
			break
		}

		result.Scanned++
		if !entry.Type().IsRegular() {
			result.Skipped++
			continue
		}

		deleted, sweepErr := s.sweepEntry(entry, cutoff)
		switch {
		case sweepErr != nil:
			result.Failed++
			remaining++
			slog.Warn("failed to process file", "filename", entry.Name(), "error", sweepErr)
		case deleted:
			result.Deleted++
			slog.Info("Deleted old file", "filename", entry.Name())
		default:
			remaining++
		}
	}

	result.Duration = time.Since(started)
	s.metrics.ObserveSweep(result.Deleted, result.Failed, remaining, result.Duration, time.Now())
	slog.Info("Retention sweep finished",
		"scanned", result.Scanned,
		"deleted", result.Deleted,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration)
	return result
}

func (s *Sweeper) sweepEntry(entry fs.DirEntry, cutoff time.Time) (bool, error) {
	info, infoErr := entry.Info()
	if infoErr != nil {
		if errors.Is(infoErr, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat: %w", infoErr)
	}

	if !info.ModTime().Before(cutoff) {
		return false, nil
	}

	if rmErr := s.remove(filepath.Join(s.root, entry.Name())); rmErr != nil {
		if errors.Is(rmErr, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove: %w", rmErr)
	}
	return true, nil
}

// Job adapts Sweep to the scheduler's job signature.
func (s *Sweeper) Job(ctx context.Context) error {
	result := s.Sweep(ctx, time.Now())
	return result.Err
}
