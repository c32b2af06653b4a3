package coordinator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// HubConfig tunes a Hub.
type HubConfig struct {
	ZonesInterval  time.Duration
	DeviceInterval time.Duration
	RequestTimeout time.Duration
	// Extended requests anti-freeze and holiday data with every module poll.
	Extended bool
}

func (c HubConfig) withDefaults() HubConfig {
	if c.ZonesInterval <= 0 {
		c.ZonesInterval = ZonesInterval
	}
	if c.DeviceInterval <= 0 {
		c.DeviceInterval = DeviceInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

type managedDevice struct {
	coord  *DeviceCoordinator
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub owns every coordinator of one gateway: zones, gateway metadata and
// one DeviceCoordinator per discovered module. Modules appear and disappear
// with the zone list.
type Hub struct {
	gw     Gateway
	cfg    HubConfig
	logger *slog.Logger

	Zones   *Coordinator[[]int]
	Gateway *Coordinator[GatewayInfo]

	mu        sync.RWMutex
	runCtx    context.Context
	devices   map[ModuleKey]*managedDevice
	onAdded   []func(*DeviceCoordinator)
	onRemoved []func(ModuleKey)
}

// NewHub creates the coordinators for gw. Nothing is polled until Run.
func NewHub(gw Gateway, cfg HubConfig, logger *slog.Logger) *Hub {
	cfg = cfg.withDefaults()
	logger = loggerOrDiscard(logger)

	h := &Hub{
		gw:      gw,
		cfg:     cfg,
		logger:  logger,
		devices: make(map[ModuleKey]*managedDevice),
	}
	h.Zones = NewZonesCoordinator(gw, cfg.ZonesInterval,
		WithRequestTimeout(cfg.RequestTimeout), WithLogger(logger.With("coordinator", "zones")))
	h.Gateway = NewGatewayCoordinator(gw, cfg.DeviceInterval,
		WithRequestTimeout(cfg.RequestTimeout), WithLogger(logger.With("coordinator", "gateway")))
	return h
}

// OnDeviceAdded registers fn to run when a module coordinator starts.
func (h *Hub) OnDeviceAdded(fn func(*DeviceCoordinator)) {
	h.mu.Lock()
	h.onAdded = append(h.onAdded, fn)
	h.mu.Unlock()
}

// OnDeviceRemoved registers fn to run after a module coordinator stopped.
func (h *Hub) OnDeviceRemoved(fn func(ModuleKey)) {
	h.mu.Lock()
	h.onRemoved = append(h.onRemoved, fn)
	h.mu.Unlock()
}

// Run performs the initial refresh of zones and gateway data, then polls
// until ctx is done. On return every module coordinator has stopped.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	h.runCtx = ctx
	h.mu.Unlock()

	h.Zones.Subscribe(func() { h.syncDevices(ctx) })

	_ = h.Zones.FirstRefresh(ctx)
	_ = h.Gateway.FirstRefresh(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = h.Zones.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = h.Gateway.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	h.stopAll()
	return ctx.Err()
}

// syncDevices starts coordinators for new modules and stops the ones whose
// module is gone from the zone list.
func (h *Hub) syncDevices(ctx context.Context) {
	zones, ok := h.Zones.Data()
	if !ok || !h.Zones.LastUpdateSuccess() {
		return
	}

	want := make(map[ModuleKey]bool)
	for _, zone := range zones {
		countCtx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
		n, err := h.gw.GetModuleCount(countCtx, zone)
		cancel()
		if err != nil {
			// Keep what we know about the zone rather than dropping it on
			// a transient error.
			h.logger.Warn("failed to fetch module count", "zone", zone, "error", err)
			for _, key := range h.keys() {
				if key.Zone == zone {
					want[key] = true
				}
			}
			continue
		}
		for m := 1; m <= n; m++ {
			want[ModuleKey{Zone: zone, Module: m}] = true
		}
	}

	for _, key := range h.keys() {
		if !want[key] {
			h.removeDevice(key, true)
		}
	}
	for key := range want {
		h.addDevice(key)
	}
}

func (h *Hub) addDevice(key ModuleKey) {
	h.mu.Lock()
	if _, exists := h.devices[key]; exists || h.runCtx == nil || h.runCtx.Err() != nil {
		h.mu.Unlock()
		return
	}

	dc := NewDeviceCoordinator(h.gw, key, h.cfg.Extended, h.cfg.DeviceInterval,
		WithRequestTimeout(h.cfg.RequestTimeout), WithLogger(h.logger))
	devCtx, cancel := context.WithCancel(h.runCtx)
	md := &managedDevice{coord: dc, cancel: cancel, done: make(chan struct{})}
	h.devices[key] = md
	listeners := append([]func(*DeviceCoordinator){}, h.onAdded...)
	h.mu.Unlock()

	h.logger.Info("module discovered", "zone", key.Zone, "module", key.Module)
	for _, fn := range listeners {
		fn(dc)
	}

	go func() {
		defer close(md.done)
		_ = dc.Refresh(devCtx)
		_ = dc.Run(devCtx)
	}()
}

// removeDevice stops the coordinator of key. Removal listeners run only if
// notify is set.
func (h *Hub) removeDevice(key ModuleKey, notify bool) {
	h.mu.Lock()
	md, ok := h.devices[key]
	if ok {
		delete(h.devices, key)
	}
	listeners := append([]func(ModuleKey){}, h.onRemoved...)
	h.mu.Unlock()
	if !ok {
		return
	}

	md.cancel()
	<-md.done
	if !notify {
		return
	}
	h.logger.Info("module removed", "zone", key.Zone, "module", key.Module)
	for _, fn := range listeners {
		fn(key)
	}
}

// stopAll stops every module coordinator. Shutting down is not a module
// removal, so listeners are not told.
func (h *Hub) stopAll() {
	for _, key := range h.keys() {
		h.removeDevice(key, false)
	}
}

func (h *Hub) keys() []ModuleKey {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]ModuleKey, 0, len(h.devices))
	for k := range h.devices {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b ModuleKey) int {
	if a.Zone != b.Zone {
		return a.Zone - b.Zone
	}
	return a.Module - b.Module
}

// Devices returns the running module coordinators ordered by zone and module.
func (h *Hub) Devices() []*DeviceCoordinator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*DeviceCoordinator, 0, len(h.devices))
	for _, md := range h.devices {
		out = append(out, md.coord)
	}
	slices.SortFunc(out, func(a, b *DeviceCoordinator) int {
		return compareKeys(a.Key(), b.Key())
	})
	return out
}

// Device returns the coordinator of one module.
func (h *Hub) Device(key ModuleKey) (*DeviceCoordinator, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	md, ok := h.devices[key]
	if !ok {
		return nil, false
	}
	return md.coord, true
}

// UpdateDateTime sets the gateway clock to the current time.
func (h *Hub) UpdateDateTime(ctx context.Context) error {
	h.logger.Debug("update the date and time")
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()
	return h.gw.UpdateDateTime(ctx, time.Now())
}
