package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zberg/go-flexismart/internal/health"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

// ModuleKey addresses one heater module on the gateway.
type ModuleKey struct {
	Zone   int `json:"zone"`
	Module int `json:"module"`
}

func (k ModuleKey) String() string {
	return fmt.Sprintf("%d/%d", k.Zone, k.Module)
}

// DeviceCoordinator polls one module and tracks its availability. After
// MaxConsecutiveFailures failed polls it backs off exponentially; the first
// successful poll restores the normal interval.
type DeviceCoordinator struct {
	*Coordinator[*flexismart.ModuleData]

	key      ModuleKey
	extended bool
	logger   *slog.Logger

	// health is only touched from the update function, which the embedded
	// coordinator serializes.
	health *health.DeviceHealth

	snapMu   sync.RWMutex
	snapshot health.Snapshot
}

// NewDeviceCoordinator creates the coordinator of one module.
func NewDeviceCoordinator(gw Gateway, key ModuleKey, extended bool, interval time.Duration, opts ...Option) *DeviceCoordinator {
	d := &DeviceCoordinator{
		key:      key,
		extended: extended,
		logger:   loggerOrDiscard(collect(opts).logger).With("zone", key.Zone, "module", key.Module),
		health:   health.New(interval),
	}
	d.snapshot = d.health.Snapshot()

	name := fmt.Sprintf("device_%d_%d", key.Zone, key.Module)
	d.Coordinator = New(name, d.health.Interval(), func(ctx context.Context) (*flexismart.ModuleData, error) {
		data, err := gw.GetModuleData(ctx, key.Zone, key.Module, extended)
		if err != nil {
			// A poll cut short by shutdown or module removal is no outcome.
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil, err
			}
			return nil, d.handleFailure(describeFailure(fmt.Sprintf("device data (zone=%d, module=%d)", key.Zone, key.Module), err))
		}
		d.handleSuccess()
		d.logger.Debug("updated device data")
		return data, nil
	}, opts...)

	return d
}

// Key returns the zone/module address.
func (d *DeviceCoordinator) Key() ModuleKey {
	return d.key
}

// Extended reports whether extended data is requested.
func (d *DeviceCoordinator) Extended() bool {
	return d.extended
}

func (d *DeviceCoordinator) handleSuccess() {
	if d.health.RecordSuccess() {
		d.logger.Info("device is available again")
	}
	d.publish()
}

func (d *DeviceCoordinator) handleFailure(err error) error {
	becameUnavailable := d.health.RecordFailure()
	failures := d.health.ConsecutiveFailures()

	d.logger.Warn(fmt.Sprintf("%v (failure %d/%d)", err, failures, health.MaxConsecutiveFailures))
	if !d.health.IsAvailable() {
		msg := "device still unavailable"
		if becameUnavailable {
			msg = "device marked unavailable"
		}
		d.logger.Warn(msg, "retry_in", d.health.NextDelay(), "attempt", failures)
	}

	d.publish()
	return err
}

// publish copies the health state for readers and applies the next delay.
func (d *DeviceCoordinator) publish() {
	snap := d.health.Snapshot()
	d.snapMu.Lock()
	d.snapshot = snap
	d.snapMu.Unlock()
	d.SetInterval(snap.NextDelay)
}

// MarkAvailable resets the failure counter and the poll interval.
func (d *DeviceCoordinator) MarkAvailable() {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if d.health.ConsecutiveFailures() > 0 {
		d.logger.Info("device is available again")
	}
	d.health.RecordSuccess()
	d.publish()
}

// Health returns a copy of the module's availability state.
func (d *DeviceCoordinator) Health() health.Snapshot {
	d.snapMu.RLock()
	defer d.snapMu.RUnlock()
	return d.snapshot
}

// IsAvailable reports whether the module is currently available.
func (d *DeviceCoordinator) IsAvailable() bool {
	return d.Health().Available
}

// ConsecutiveFailures is the number of failed polls since the last success.
func (d *DeviceCoordinator) ConsecutiveFailures() int {
	return d.Health().ConsecutiveFailures
}
