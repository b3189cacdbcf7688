package events

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/q-controller/imagedrop/src/pkg/utils"
)

// WatchDirectory publishes an event for every file that appears in or
// disappears from dir until ctx is cancelled. Hidden entries are ignored, so
// staged writes are only reported once they are renamed into place.
func WatchDirectory(ctx context.Context, dir string, publish func(Event) error) error {
	watcher, watcherErr := fsnotify.NewWatcher()
	if watcherErr != nil {
		return fmt.Errorf("failed to create watcher: %w", watcherErr)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			slog.Error("WatchDirectory: failed to close watcher", "error", err)
		}
	}()

	if addErr := watcher.Add(dir); addErr != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, addErr)
	}

	slog.Debug("WatchDirectory: starting to watch directory", "directory", dir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			eventType, relevant := classify(event)
			name := filepath.Base(event.Name)
			if !relevant || utils.IsHidden(name) {
				continue
			}
			if err := publish(Event{Type: eventType, Filename: name, Timestamp: time.Now().Unix()}); err != nil {
				slog.Debug("WatchDirectory: failed to publish event", "filename", name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Warn("WatchDirectory: watcher error", "error", err)
		}
	}
}

func classify(event fsnotify.Event) (EventType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return EventCreated, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return EventRemoved, true
	default:
		return "", false
	}
}
