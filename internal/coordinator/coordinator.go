// Package coordinator polls the gateway on timers and keeps the latest
// result of every data source for the presentation sinks.
//
// A Coordinator owns one data source. Its Run loop is the only caller of
// the update function, so per-source state such as module health has a
// single writer. Readers get copies through Data, LastError and friends.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultRequestTimeout bounds a single update when no option overrides it.
const DefaultRequestTimeout = 20 * time.Second

var (
	// ErrUpdateFailed wraps every failed update.
	ErrUpdateFailed = errors.New("update failed")
	// ErrCanceled is returned by Refresh when ctx ended during the update.
	ErrCanceled = errors.New("refresh canceled")
)

// UpdateFunc fetches a fresh value for a data source.
type UpdateFunc[T any] func(ctx context.Context) (T, error)

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	requestTimeout time.Duration
	logger         *slog.Logger
}

// WithRequestTimeout bounds each update call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Coordinator periodically refreshes one value and notifies listeners.
type Coordinator[T any] struct {
	name           string
	update         UpdateFunc[T]
	requestTimeout time.Duration
	logger         *slog.Logger

	// refreshMu serializes updates: one outcome is processed at a time.
	refreshMu sync.Mutex
	refreshCh chan struct{}

	mu          sync.RWMutex
	interval    time.Duration
	data        T
	hasData     bool
	lastSuccess bool
	lastErr     error
	lastUpdate  time.Time
	listeners   []func()
}

// New creates a coordinator that calls update every interval once running.
func New[T any](name string, interval time.Duration, update UpdateFunc[T], opts ...Option) *Coordinator[T] {
	o := options{requestTimeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator[T]{
		name:           name,
		update:         update,
		requestTimeout: o.requestTimeout,
		logger:         o.logger,
		refreshCh:      make(chan struct{}, 1),
		interval:       interval,
	}
}

// Name identifies the coordinator in logs.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Refresh runs one update now and records its outcome. An update cut short
// by ctx is not recorded and listeners are not run.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	updateCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	data, err := c.update(updateCtx)
	cancel()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrCanceled, c.name, ctxErr)
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUpdateFailed, c.name, err)
	}

	c.mu.Lock()
	c.lastUpdate = time.Now()
	if err == nil {
		c.data = data
		c.hasData = true
		c.lastSuccess = true
		c.lastErr = nil
	} else {
		c.lastSuccess = false
		c.lastErr = err
	}
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return err
}

// FirstRefresh performs the initial update. A failure is logged as a
// warning; the Run loop will retry on its normal schedule.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err != nil && c.logger != nil {
		c.logger.Warn("initial refresh failed", "coordinator", c.name, "error", err)
	}
	return err
}

// Run refreshes every Interval until ctx is done. Failed updates never stop
// the loop. It does not refresh immediately; call Refresh or FirstRefresh
// first for that.
func (c *Coordinator[T]) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(c.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		_ = c.Refresh(ctx)
	}
}

// RequestRefresh asks a running loop to refresh as soon as possible.
func (c *Coordinator[T]) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Subscribe registers fn to run after every update, successful or not.
func (c *Coordinator[T]) Subscribe(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Data returns the last successfully fetched value and whether there is one.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.hasData
}

// LastUpdateSuccess reports whether the most recent update succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// LastError is the error of the most recent update, nil after a success.
func (c *Coordinator[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdate is when the most recent update finished.
func (c *Coordinator[T]) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Interval is the current delay between updates.
func (c *Coordinator[T]) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// SetInterval changes the delay before the next scheduled update.
func (c *Coordinator[T]) SetInterval(d time.Duration) {
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}
