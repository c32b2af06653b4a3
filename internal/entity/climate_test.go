package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

func sampleModule() *flexismart.ModuleData {
	return &flexismart.ModuleData{
		Zone:                2,
		Module:              3,
		Identifier:          "A1B2C3",
		FirmwareVersion:     "v1.2v",
		TargetTemperature:   21.5,
		CurrentTemperature:  19.0,
		TemperatureOffset:   -0.5,
		WindowOpenDetection: true,
	}
}

func TestNewClimate(t *testing.T) {
	c := NewClimate(sampleModule(), true)

	assert.Equal(t, "thermotec-aeroflow_Heater_A1B2C3", c.UniqueID)
	assert.Equal(t, "Thermotec AeroFlow - Heater - A1B2C3", c.Name)
	assert.Equal(t, 2, c.Zone)
	assert.Equal(t, 3, c.Module)
	assert.True(t, c.Available)
	assert.Equal(t, 19.0, c.CurrentTemperature)
	assert.Equal(t, 21.5, c.TargetTemperature)
	assert.Equal(t, MinTemp, c.MinTemp)
	assert.Equal(t, MaxTemp, c.MaxTemp)
	assert.Equal(t, HVACModeHeat, c.HVACMode)
	assert.Equal(t, HVACActionHeating, c.HVACAction)
	assert.Equal(t, PresetHome, c.PresetMode)

	assert.Equal(t, ClimateAttributes{
		WindowOpenDetection:   true,
		AntiFreezeTemperature: 0,
		BoostTimeLeft:         "0 min",
		TemperatureOffset:     -0.5,
		Zone:                  2,
		Module:                3,
	}, c.Attributes)

	assert.Equal(t, []string{"thermotec-aeroflow_A1B2C3"}, c.Device.Identifiers)
	assert.Equal(t, Manufacturer, c.Device.Manufacturer)
	assert.Equal(t, "1.2", c.Device.SWVersion)
}

func TestNewClimate_ExtendedData(t *testing.T) {
	m := sampleModule()
	m.Extended = true
	m.AntiFreezeTemperature = 7
	m.Holiday = flexismart.HolidayData{Active: true, Until: time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)}

	c := NewClimate(m, false)
	assert.False(t, c.Available)
	assert.Equal(t, 7.0, c.Attributes.AntiFreezeTemperature)
	assert.Equal(t, PresetAway, c.PresetMode)
}

func TestPresetMode(t *testing.T) {
	tests := []struct {
		name    string
		boost   bool
		holiday bool
		want    string
	}{
		{"normal", false, false, PresetHome},
		{"boost", true, false, PresetBoost},
		{"holiday", false, true, PresetAway},
		{"boost wins", true, true, PresetBoost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleModule()
			m.Extended = true
			m.BoostActive = tt.boost
			m.BoostTimeLeft = 45 * time.Minute
			m.Holiday.Active = tt.holiday
			assert.Equal(t, tt.want, PresetMode(m))
		})
	}
}

func TestPresetMode_HolidayIgnoredWithoutExtendedData(t *testing.T) {
	m := sampleModule()
	m.Holiday.Active = true
	assert.Equal(t, PresetHome, PresetMode(m))
}

func TestHVACAction(t *testing.T) {
	assert.Equal(t, HVACActionHeating, HVACAction(18, 21))
	assert.Equal(t, HVACActionIdle, HVACAction(21, 21))
	assert.Equal(t, HVACActionIdle, HVACAction(23, 21))
}

func TestClampTemperature(t *testing.T) {
	assert.Equal(t, 1.0, ClampTemperature(-4))
	assert.Equal(t, 1.0, ClampTemperature(1))
	assert.Equal(t, 22.5, ClampTemperature(22.5))
	assert.Equal(t, 35.0, ClampTemperature(35))
	assert.Equal(t, 35.0, ClampTemperature(40))
}

func TestClimateFromDevice_NoDataYet(t *testing.T) {
	dc := coordinator.NewDeviceCoordinator(nil, coordinator.ModuleKey{Zone: 1, Module: 1}, false, time.Minute)
	_, ok := ClimateFromDevice(dc)
	require.False(t, ok)
}
