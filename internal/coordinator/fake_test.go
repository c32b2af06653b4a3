package coordinator

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/zberg/go-flexismart/pkg/flexismart"
)

// fakeGateway is an in-memory Gateway with switchable failures.
type fakeGateway struct {
	mu           sync.Mutex
	zones        []int
	modules      map[int]int
	gatewayErr   error
	moduleErr    error
	countErr     map[int]error
	moduleCalls  int
	dateTimeSets []time.Time
}

func newFakeGateway(modules map[int]int) *fakeGateway {
	f := &fakeGateway{modules: modules, countErr: make(map[int]error)}
	for z := range modules {
		f.zones = append(f.zones, z)
	}
	return f
}

func (f *fakeGateway) setZones(modules map[int]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modules = modules
	f.zones = f.zones[:0]
	for z := range modules {
		f.zones = append(f.zones, z)
	}
}

func (f *fakeGateway) setModuleErr(err error) {
	f.mu.Lock()
	f.moduleErr = err
	f.mu.Unlock()
}

func (f *fakeGateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (f *fakeGateway) GetGatewayData(ctx context.Context) (*flexismart.GatewayData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gatewayErr != nil {
		return nil, f.gatewayErr
	}
	mac, _ := net.ParseMAC("00:1a:22:33:44:55")
	return &flexismart.GatewayData{
		FirmwareVersion: "v2.14",
		Model:           "FlexiSmart Gateway",
		DeviceName:      "Gateway",
		MACAddress:      mac,
		IPAddress:       net.IPv4(192, 168, 1, 60),
		Zones:           append([]int(nil), f.zones...),
	}, nil
}

func (f *fakeGateway) GetModuleCount(ctx context.Context, zone int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.countErr[zone]; err != nil {
		return 0, err
	}
	return f.modules[zone], nil
}

func (f *fakeGateway) GetModuleData(ctx context.Context, zone, module int, extended bool) (*flexismart.ModuleData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moduleCalls++
	if f.moduleErr != nil {
		return nil, f.moduleErr
	}
	return &flexismart.ModuleData{
		Zone:               zone,
		Module:             module,
		Identifier:         "ID" + string(rune('A'+zone)) + string(rune('0'+module)),
		FirmwareVersion:    "v1.7",
		TargetTemperature:  21,
		CurrentTemperature: 19.5,
		Extended:           extended,
	}, nil
}

func (f *fakeGateway) UpdateDateTime(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dateTimeSets = append(f.dateTimeSets, now)
	return nil
}
