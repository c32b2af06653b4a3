// Package health tracks per-module availability and computes the delay
// before the next poll.
//
// A module stays available through a grace period of soft failures. On the
// third consecutive failure it becomes unavailable and polling backs off
// exponentially from MinRetryBackoff up to MaxRetryBackoff. A single
// successful poll makes it available again and restores the normal interval.
//
// DeviceHealth does no locking. The poller that owns it is its only writer.
package health

import (
	"math"
	"time"
)

const (
	// MaxConsecutiveFailures is the failure count at which a module is
	// considered unavailable.
	MaxConsecutiveFailures = 3

	// MinRetryBackoff is the first backoff delay once a module is unavailable.
	MinRetryBackoff = 5 * time.Second

	// MaxRetryBackoff caps the backoff delay.
	MaxRetryBackoff = 2 * time.Minute

	// DefaultInterval is the normal module poll interval.
	DefaultInterval = 35 * time.Second

	// maxBackoffShift is the smallest exponent for which
	// MinRetryBackoff<<shift reaches MaxRetryBackoff.
	maxBackoffShift = 5
)

// State is the availability state of a module.
type State int

const (
	// Available means fewer than MaxConsecutiveFailures polls failed in a row.
	Available State = iota
	// Unavailable means the module is backing off after repeated failures.
	Unavailable
)

func (s State) String() string {
	if s == Unavailable {
		return "unavailable"
	}
	return "available"
}

// DeviceHealth is the failure bookkeeping of one polled module.
type DeviceHealth struct {
	interval            time.Duration
	consecutiveFailures int
}

// New returns the health of a freshly discovered module polled every
// interval while available. A non-positive interval means DefaultInterval.
func New(interval time.Duration) *DeviceHealth {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &DeviceHealth{interval: interval}
}

// RecordSuccess resets the failure counter. It reports whether the module
// just went from Unavailable to Available.
func (h *DeviceHealth) RecordSuccess() (recovered bool) {
	recovered = h.State() == Unavailable
	h.consecutiveFailures = 0
	return recovered
}

// RecordFailure counts one failed poll. It reports whether this failure
// made the module Unavailable.
func (h *DeviceHealth) RecordFailure() (becameUnavailable bool) {
	before := h.State()
	if h.consecutiveFailures < math.MaxInt32 {
		h.consecutiveFailures++
	}
	return before == Available && h.State() == Unavailable
}

// ConsecutiveFailures is the number of failed polls since the last success.
func (h *DeviceHealth) ConsecutiveFailures() int {
	return h.consecutiveFailures
}

// IsAvailable reports whether fewer than MaxConsecutiveFailures polls in a
// row have failed.
func (h *DeviceHealth) IsAvailable() bool {
	return h.consecutiveFailures < MaxConsecutiveFailures
}

// State returns Available or Unavailable.
func (h *DeviceHealth) State() State {
	if h.IsAvailable() {
		return Available
	}
	return Unavailable
}

// Interval is the normal poll interval of the module.
func (h *DeviceHealth) Interval() time.Duration {
	return h.interval
}

// NextDelay returns how long to wait before polling the module again.
func (h *DeviceHealth) NextDelay() time.Duration {
	if h.IsAvailable() {
		return h.interval
	}
	return BackoffDelay(h.consecutiveFailures)
}

// BackoffDelay is min(MinRetryBackoff * 2^(failures-3), MaxRetryBackoff)
// for failures >= MaxConsecutiveFailures, and zero below the threshold.
func BackoffDelay(failures int) time.Duration {
	if failures < MaxConsecutiveFailures {
		return 0
	}
	shift := failures - MaxConsecutiveFailures
	if shift >= maxBackoffShift {
		return MaxRetryBackoff
	}
	return min(MinRetryBackoff<<shift, MaxRetryBackoff)
}

// Snapshot is an immutable copy of a module's health for readers outside
// the owning poller.
type Snapshot struct {
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Available           bool          `json:"available"`
	NextDelay           time.Duration `json:"next_delay"`
}

// Snapshot copies the current state.
func (h *DeviceHealth) Snapshot() Snapshot {
	return Snapshot{
		ConsecutiveFailures: h.consecutiveFailures,
		Available:           h.IsAvailable(),
		NextDelay:           h.NextDelay(),
	}
}
