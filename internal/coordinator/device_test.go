package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-flexismart/internal/health"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

func TestDeviceCoordinator_Success(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 1})
	dc := NewDeviceCoordinator(gw, ModuleKey{Zone: 1, Module: 1}, true, DeviceInterval)

	require.NoError(t, dc.Refresh(context.Background()))

	data, ok := dc.Data()
	require.True(t, ok)
	assert.Equal(t, 1, data.Zone)
	assert.True(t, data.Extended)
	assert.True(t, dc.IsAvailable())
	assert.Equal(t, 0, dc.ConsecutiveFailures())
	assert.Equal(t, DeviceInterval, dc.Interval())
	assert.Equal(t, "1/1", dc.Key().String())
	assert.True(t, dc.Extended())
}

func TestDeviceCoordinator_BackoffAndRecovery(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 1})
	dc := NewDeviceCoordinator(gw, ModuleKey{Zone: 1, Module: 1}, false, DeviceInterval)
	ctx := context.Background()

	gw.setModuleErr(fmt.Errorf("%w: no answer", flexismart.ErrRequestTimeout))

	require.Error(t, dc.Refresh(ctx))
	require.Error(t, dc.Refresh(ctx))
	assert.True(t, dc.IsAvailable(), "grace period")
	assert.Equal(t, DeviceInterval, dc.Interval())

	err := dc.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, flexismart.ErrRequestTimeout)
	assert.Contains(t, err.Error(), "timeout fetching device data (zone=1, module=1)")
	assert.False(t, dc.IsAvailable())
	assert.Equal(t, 5*time.Second, dc.Interval())

	expected := []time.Duration{10, 20, 40, 80, 120, 120}
	for _, want := range expected {
		require.Error(t, dc.Refresh(ctx))
		assert.Equal(t, want*time.Second, dc.Interval())
	}
	assert.Equal(t, 9, dc.ConsecutiveFailures())

	gw.setModuleErr(nil)
	require.NoError(t, dc.Refresh(ctx))
	assert.True(t, dc.IsAvailable())
	assert.Equal(t, 0, dc.ConsecutiveFailures())
	assert.Equal(t, DeviceInterval, dc.Interval())
}

// hangingGateway blocks module polls until their context ends once hang is
// set.
type hangingGateway struct {
	*fakeGateway
	hang    atomic.Bool
	started chan struct{}
}

func (g *hangingGateway) GetModuleData(ctx context.Context, zone, module int, extended bool) (*flexismart.ModuleData, error) {
	if !g.hang.Load() {
		return g.fakeGateway.GetModuleData(ctx, zone, module, extended)
	}
	g.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDeviceCoordinator_CanceledPollIsNotAFailure(t *testing.T) {
	gw := &hangingGateway{fakeGateway: newFakeGateway(map[int]int{1: 1}), started: make(chan struct{}, 1)}
	dc := NewDeviceCoordinator(gw, ModuleKey{Zone: 1, Module: 1}, false, DeviceInterval)

	var notified atomic.Int32
	dc.Subscribe(func() { notified.Add(1) })

	gw.setModuleErr(fmt.Errorf("%w: no answer", flexismart.ErrRequestTimeout))
	require.Error(t, dc.Refresh(context.Background()))
	require.Error(t, dc.Refresh(context.Background()))
	require.Equal(t, 2, dc.ConsecutiveFailures())

	gw.hang.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-gw.started
		cancel()
	}()

	err := dc.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.NotErrorIs(t, err, ErrUpdateFailed)

	assert.Equal(t, 2, dc.ConsecutiveFailures())
	assert.True(t, dc.IsAvailable())
	assert.Equal(t, DeviceInterval, dc.Interval())
	assert.Equal(t, int32(2), notified.Load())
	assert.ErrorIs(t, dc.LastError(), flexismart.ErrRequestTimeout)
}

func TestDeviceCoordinator_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", flexismart.ErrRequestTimeout, "timeout fetching"},
		{"deadline", context.DeadlineExceeded, "timeout fetching"},
		{"invalid response", flexismart.ErrInvalidResponse, "invalid response fetching"},
		{"invalid request", flexismart.ErrInvalidRequest, "invalid request fetching"},
		{"other", errors.New("socket gone"), "unexpected error fetching"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(map[int]int{2: 1})
			gw.setModuleErr(tt.err)
			dc := NewDeviceCoordinator(gw, ModuleKey{Zone: 2, Module: 1}, false, DeviceInterval)

			err := dc.Refresh(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, dc.ConsecutiveFailures())
		})
	}
}

func TestDeviceCoordinator_MarkAvailable(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 1})
	gw.setModuleErr(flexismart.ErrInvalidResponse)
	dc := NewDeviceCoordinator(gw, ModuleKey{Zone: 1, Module: 1}, false, DeviceInterval)

	for i := 0; i < 4; i++ {
		_ = dc.Refresh(context.Background())
	}
	require.False(t, dc.IsAvailable())

	dc.MarkAvailable()
	assert.True(t, dc.IsAvailable())
	assert.Equal(t, DeviceInterval, dc.Interval())

	h := dc.Health()
	assert.Equal(t, health.Snapshot{ConsecutiveFailures: 0, Available: true, NextDelay: DeviceInterval}, h)
}
