// Package refresh keeps an in-memory projection current by polling a loader
// on a fixed interval.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is used when a non-positive interval is configured.
const DefaultInterval = 60 * time.Second

// Loader produces a fresh value.
type Loader[T any] func(ctx context.Context) (T, error)

// Loop polls a Loader. A successful load replaces the held value outright;
// a failed load keeps the last good value. Loads never overlap.
type Loop[T any] struct {
	load     Loader[T]
	interval time.Duration
	logger   *slog.Logger
	name     string

	mu       sync.RWMutex
	value    T
	loaded   bool
	loadedAt time.Time
	lastErr  error

	runMu   sync.Mutex
	loadMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	updates []func(T)
}

// Option configures a Loop.
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger used for failed loads.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels log lines of this loop.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func New[T any](load Loader[T], interval time.Duration, opts ...Option) *Loop[T] {
	if load == nil {
		panic("refresh.New requires a loader")
	}
	o := options{logger: slog.Default(), name: "refresh"}
	for _, opt := range opts {
		opt(&o)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop[T]{load: load, interval: interval, logger: o.logger, name: o.name}
}

// Interval reports the polling interval.
func (l *Loop[T]) Interval() time.Duration { return l.interval }

// OnUpdate registers fn to run after every successful load. Register before Start.
func (l *Loop[T]) OnUpdate(fn func(T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, fn)
}

// Refresh loads once and returns the load error, if any.
func (l *Loop[T]) Refresh(ctx context.Context) error {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	v, err := l.load(ctx)
	l.mu.Lock()
	if err != nil {
		l.lastErr = err
		l.mu.Unlock()
		if !errors.Is(err, context.Canceled) {
			l.logger.Warn("refresh failed, keeping last value", "loop", l.name, "error", err)
		}
		return err
	}
	l.value = v
	l.loaded = true
	l.loadedAt = time.Now()
	l.lastErr = nil
	updates := append([]func(T){}, l.updates...)
	l.mu.Unlock()

	for _, fn := range updates {
		fn(v)
	}
	return nil
}

// Latest returns the last good value, when it was loaded, and whether any
// load has succeeded yet.
func (l *Loop[T]) Latest() (T, time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.loadedAt, l.loaded
}

// Err returns the error of the most recent load, nil after a success.
func (l *Loop[T]) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Start loads immediately then on every tick until ctx is done or Stop is
// called. Calling Start on a running loop does nothing.
func (l *Loop[T]) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go func() {
		defer close(done)
		l.run(ctx)
	}()
}

func (l *Loop[T]) run(ctx context.Context) {
	_ = l.Refresh(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.Refresh(ctx)
		}
	}
}

// Stop cancels a running loop and waits for it to exit. The loop can be
// started again afterwards.
func (l *Loop[T]) Stop() {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
