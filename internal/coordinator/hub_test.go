package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastHubConfig() HubConfig {
	return HubConfig{
		ZonesInterval:  20 * time.Millisecond,
		DeviceInterval: 20 * time.Millisecond,
		RequestTimeout: time.Second,
		Extended:       true,
	}
}

func keysOf(devs []*DeviceCoordinator) []ModuleKey {
	keys := make([]ModuleKey, 0, len(devs))
	for _, d := range devs {
		keys = append(keys, d.Key())
	}
	return keys
}

func TestHub_DiscoversAndRemovesModules(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 2, 2: 1})
	hub := NewHub(gw, fastHubConfig(), nil)

	var mu sync.Mutex
	var added, removed []ModuleKey
	hub.OnDeviceAdded(func(dc *DeviceCoordinator) {
		mu.Lock()
		added = append(added, dc.Key())
		mu.Unlock()
	})
	hub.OnDeviceRemoved(func(key ModuleKey) {
		mu.Lock()
		removed = append(removed, key)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(hub.Devices()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []ModuleKey{{1, 1}, {1, 2}, {2, 1}}, keysOf(hub.Devices()))

	dc, ok := hub.Device(ModuleKey{Zone: 1, Module: 2})
	require.True(t, ok)
	require.Eventually(t, func() bool {
		_, has := dc.Data()
		return has
	}, 2*time.Second, 5*time.Millisecond)

	info, ok := hub.Gateway.Data()
	require.True(t, ok)
	assert.Equal(t, "v2.14", info.FirmwareVersion)
	assert.Equal(t, "00:1a:22:33:44:55", info.MACAddress)

	gw.setZones(map[int]int{1: 1})
	require.Eventually(t, func() bool { return len(hub.Devices()) == 1 }, 2*time.Second, 5*time.Millisecond)
	_, ok = hub.Device(ModuleKey{Zone: 2, Module: 1})
	assert.False(t, ok)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Empty(t, hub.Devices())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, added, 3)
	assert.ElementsMatch(t, []ModuleKey{{1, 2}, {2, 1}}, removed)
}

func TestHub_KeepsZoneOnModuleCountError(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 2})
	hub := NewHub(gw, fastHubConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	require.Eventually(t, func() bool { return len(hub.Devices()) == 2 }, 2*time.Second, 5*time.Millisecond)

	gw.mu.Lock()
	gw.countErr[1] = errors.New("timeout")
	gw.mu.Unlock()

	// Several zone refreshes later the modules must still be there.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, hub.Devices(), 2)
}

func TestHub_StartsWithUnreachableGateway(t *testing.T) {
	gw := newFakeGateway(map[int]int{1: 1})
	gw.gatewayErr = errors.New("unreachable")
	hub := NewHub(gw, fastHubConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.Zones.LastError() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, hub.Devices())

	gw.mu.Lock()
	gw.gatewayErr = nil
	gw.mu.Unlock()

	require.Eventually(t, func() bool { return len(hub.Devices()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, hub.Gateway.LastUpdateSuccess, 2*time.Second, 5*time.Millisecond)
}

func TestHub_UpdateDateTime(t *testing.T) {
	gw := newFakeGateway(map[int]int{})
	hub := NewHub(gw, HubConfig{}, nil)

	require.NoError(t, hub.UpdateDateTime(context.Background()))
	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.dateTimeSets, 1)
	assert.WithinDuration(t, time.Now(), gw.dateTimeSets[0], time.Second)
}
