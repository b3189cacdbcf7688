package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

const DefaultPollInterval = time.Minute

// Job is the unit of work a Daily scheduler runs.
type Job func(ctx context.Context) error

type Option func(*Daily)

func WithPollInterval(interval time.Duration) Option {
	return func(d *Daily) {
		d.poll = interval
	}
}

// WithClock replaces time.Now. The clock's location decides what "local" means.
func WithClock(now func() time.Time) Option {
	return func(d *Daily) {
		d.now = now
	}
}

func WithName(name string) Option {
	return func(d *Daily) {
		d.name = name
	}
}

// Daily runs a job once a day at a fixed wall-clock time. Between runs it
// wakes up every poll interval to compare the clock with the next due time.
type Daily struct {
	name   string
	hour   int
	minute int
	job    Job
	poll   time.Duration
	now    func() time.Time
}

// ParseClock parses a 24h "HH:MM" wall-clock time.
func ParseClock(value string) (hour, minute int, err error) {
	parsed, parseErr := time.Parse("15:04", value)
	if parseErr != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// NewDaily creates a scheduler for job at "HH:MM" local time.
func NewDaily(at string, job Job, opts ...Option) (*Daily, error) {
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}
	hour, minute, clockErr := ParseClock(at)
	if clockErr != nil {
		return nil, fmt.Errorf("invalid schedule time: %w", clockErr)
	}

	d := &Daily{
		name:   "daily",
		hour:   hour,
		minute: minute,
		job:    job,
		poll:   DefaultPollInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.poll <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", d.poll)
	}
	return d, nil
}

// Next returns the first scheduled time strictly after t.
func (d *Daily) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.hour, d.minute, 0, 0, t.Location())
	}
	return next
}

// Run blocks until ctx is cancelled and returns ctx.Err(). A failing or
// panicking job is logged and the loop goes on to the next day.
func (d *Daily) Run(ctx context.Context) error {
	next := d.Next(d.now())
	slog.Info("Starting background scheduler", "name", d.name, "next_run", next.Format(time.RFC3339))

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping background scheduler", "name", d.name)
			return ctx.Err()
		case <-ticker.C:
			now := d.now()
			if now.Before(next) {
				continue
			}

			d.runJob(ctx)
			next = d.Next(d.now())
			slog.Debug("Scheduled next run", "name", d.name, "next_run", next.Format(time.RFC3339))
		}
	}
}

func (d *Daily) runJob(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "name", d.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := d.job(ctx); err != nil {
		slog.Error("scheduled job failed", "name", d.name, "error", err)
	}
}
