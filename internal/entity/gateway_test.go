package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zberg/go-flexismart/internal/coordinator"
)

func TestNewGateway(t *testing.T) {
	info := coordinator.GatewayInfo{
		FirmwareVersion: "2.14",
		Model:           "FlexiSmart Gateway 2",
		DeviceName:      "Living room",
		MACAddress:      "00:1a:22:33:44:55",
		IPAddress:       "192.168.1.60",
	}

	g := NewGateway(info, true)
	assert.Equal(t, GatewayUniqueID, g.UniqueID)
	assert.Equal(t, "Thermotec AeroFlow Gateway", g.Name)
	assert.True(t, g.Available)
	assert.Equal(t, info, g.Info)
	assert.Equal(t, DeviceInfo{
		Identifiers:  []string{"thermotec-aeroflow_gateway"},
		Name:         GatewayName,
		Manufacturer: Manufacturer,
		Model:        "FlexiSmart Gateway 2",
		SWVersion:    "2.14",
		HWVersion:    "00:1a:22:33:44:55",
	}, g.Device)
}

func TestNewGateway_Defaults(t *testing.T) {
	g := NewGateway(coordinator.GatewayInfo{}, false)
	assert.False(t, g.Available)
	assert.Equal(t, "FlexiSmart Gateway", g.Device.Model)
	assert.Equal(t, "Unknown", g.Device.SWVersion)
	assert.Equal(t, "Unknown", g.Device.HWVersion)
}
