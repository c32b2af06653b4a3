// Package coordinatortest provides an in-memory gateway for tests of code
// built on the coordinators.
package coordinatortest

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

// Gateway implements coordinator.Gateway and entity.Controller over a map
// of modules. Commands are recorded as strings.
type Gateway struct {
	mu        sync.Mutex
	modules   map[coordinator.ModuleKey]*flexismart.ModuleData
	moduleErr error
	gwErr     error
	calls     []string
}

// NewGateway returns a gateway serving the given modules.
func NewGateway(modules ...*flexismart.ModuleData) *Gateway {
	g := &Gateway{modules: make(map[coordinator.ModuleKey]*flexismart.ModuleData)}
	for _, m := range modules {
		g.modules[coordinator.ModuleKey{Zone: m.Zone, Module: m.Module}] = m
	}
	return g
}

// Module returns telemetry for a heater in zone/module with sensible values.
func Module(zone, module int) *flexismart.ModuleData {
	return &flexismart.ModuleData{
		Zone:               zone,
		Module:             module,
		Identifier:         fmt.Sprintf("AF%02d%02d", zone, module),
		FirmwareVersion:    "v1.4",
		TargetTemperature:  21,
		CurrentTemperature: 19.5,
	}
}

// SetModuleErr makes every module read fail with err, or succeed for nil.
func (g *Gateway) SetModuleErr(err error) {
	g.mu.Lock()
	g.moduleErr = err
	g.mu.Unlock()
}

// SetGatewayErr makes gateway reads fail with err, or succeed for nil.
func (g *Gateway) SetGatewayErr(err error) {
	g.mu.Lock()
	g.gwErr = err
	g.mu.Unlock()
}

// Calls returns the recorded commands.
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

func (g *Gateway) record(format string, args ...any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (g *Gateway) GetGatewayData(ctx context.Context) (*flexismart.GatewayData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gwErr != nil {
		return nil, g.gwErr
	}

	var zones []int
	for key := range g.modules {
		if !slices.Contains(zones, key.Zone) {
			zones = append(zones, key.Zone)
		}
	}
	slices.Sort(zones)

	mac, _ := net.ParseMAC("00:1a:22:33:44:55")
	return &flexismart.GatewayData{
		FirmwareVersion: "2.14",
		Model:           "FlexiSmart Gateway",
		DeviceName:      "Gateway",
		MACAddress:      mac,
		IPAddress:       net.IPv4(192, 168, 1, 60),
		Zones:           zones,
	}, nil
}

func (g *Gateway) GetModuleCount(ctx context.Context, zone int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for key := range g.modules {
		if key.Zone == zone {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) GetModuleData(ctx context.Context, zone, module int, extended bool) (*flexismart.ModuleData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.moduleErr != nil {
		return nil, g.moduleErr
	}
	m, ok := g.modules[coordinator.ModuleKey{Zone: zone, Module: module}]
	if !ok {
		return nil, flexismart.ErrInvalidRequest
	}
	data := *m
	data.Extended = extended
	return &data, nil
}

func (g *Gateway) UpdateDateTime(_ context.Context, now time.Time) error {
	return g.record("date time %s", now.Format(time.DateOnly))
}

func (g *Gateway) SetModuleTemperature(_ context.Context, zone, module int, celsius float64) error {
	return g.record("temperature %d/%d %.1f", zone, module, celsius)
}

func (g *Gateway) SetModuleBoost(_ context.Context, zone, module, minutes int) error {
	return g.record("boost %d/%d %d", zone, module, minutes)
}

func (g *Gateway) SetModuleHolidayMode(_ context.Context, zone, module int, _ time.Time, temperature float64) error {
	return g.record("holiday %d/%d %.1f", zone, module, temperature)
}

func (g *Gateway) DisableModuleHolidayMode(_ context.Context, zone, module int) error {
	return g.record("holiday off %d/%d", zone, module)
}

func (g *Gateway) EnableModuleWindowOpenDetection(_ context.Context, zone, module int) error {
	return g.record("window on %d/%d", zone, module)
}

func (g *Gateway) DisableModuleWindowOpenDetection(_ context.Context, zone, module int) error {
	return g.record("window off %d/%d", zone, module)
}

func (g *Gateway) SetModuleAntiFreezeTemperature(_ context.Context, zone, module int, celsius float64) error {
	return g.record("anti-freeze %d/%d %.0f", zone, module, celsius)
}

// Devices is a fixed set of device coordinators. It implements the device
// lookups of *coordinator.Hub.
type Devices struct {
	GW      *Gateway
	devices []*coordinator.DeviceCoordinator
}

// NewDevices creates one device coordinator per module of gw, refreshed
// once so that they carry data.
func NewDevices(ctx context.Context, gw *Gateway, extended bool) *Devices {
	d := &Devices{GW: gw}
	gw.mu.Lock()
	keys := make([]coordinator.ModuleKey, 0, len(gw.modules))
	for key := range gw.modules {
		keys = append(keys, key)
	}
	gw.mu.Unlock()
	slices.SortFunc(keys, func(a, b coordinator.ModuleKey) int {
		if a.Zone != b.Zone {
			return a.Zone - b.Zone
		}
		return a.Module - b.Module
	})

	for _, key := range keys {
		dc := coordinator.NewDeviceCoordinator(gw, key, extended, coordinator.DeviceInterval)
		_ = dc.Refresh(ctx)
		d.devices = append(d.devices, dc)
	}
	return d
}

func (d *Devices) Devices() []*coordinator.DeviceCoordinator {
	return slices.Clone(d.devices)
}

func (d *Devices) Device(key coordinator.ModuleKey) (*coordinator.DeviceCoordinator, bool) {
	for _, dc := range d.devices {
		if dc.Key() == key {
			return dc, true
		}
	}
	return nil, false
}

func (d *Devices) UpdateDateTime(ctx context.Context) error {
	return d.GW.UpdateDateTime(ctx, time.Now())
}
