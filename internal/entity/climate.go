// Package entity maps coordinator data onto the heater (climate) and
// gateway entities shown in Home Assistant, and turns entity actions into
// gateway commands.
package entity

import (
	"fmt"
	"strings"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

const (
	Domain       = "thermotec_aeroflow"
	Manufacturer = "Thermotec AG"

	heaterType = "Heater"

	MinTemp = 1.0
	MaxTemp = 35.0

	TemperatureUnit = "°C"

	PresetHome  = "home"
	PresetAway  = "away"
	PresetBoost = "boost"

	HVACModeHeat = "heat"

	HVACActionHeating = "heating"
	HVACActionIdle    = "idle"
)

// PresetModes lists the supported presets in display order.
var PresetModes = []string{PresetHome, PresetAway, PresetBoost}

// DeviceInfo is the device registry entry an entity belongs to.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	HWVersion    string   `json:"hw_version,omitempty"`
}

// ClimateAttributes are the extra state attributes of a heater.
type ClimateAttributes struct {
	WindowOpenDetection   bool    `json:"window_open_detection"`
	AntiFreezeTemperature float64 `json:"anti_freeze_temperature"`
	BoostTimeLeft         string  `json:"boost_time_left"`
	TemperatureOffset     float64 `json:"temperature_offset"`
	Zone                  int     `json:"zone"`
	Module                int     `json:"module"`
}

// Climate is the state of one heater module.
type Climate struct {
	UniqueID   string `json:"unique_id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Zone       int    `json:"zone"`
	Module     int    `json:"module"`
	Available  bool   `json:"available"`

	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	MinTemp            float64 `json:"min_temp"`
	MaxTemp            float64 `json:"max_temp"`
	HVACMode           string  `json:"hvac_mode"`
	HVACAction         string  `json:"hvac_action"`
	PresetMode         string  `json:"preset_mode"`

	Attributes ClimateAttributes `json:"attributes"`
	Device     DeviceInfo        `json:"device"`
}

// ClimateUniqueID is the unique id of the heater with the given identifier.
func ClimateUniqueID(identifier string) string {
	return fmt.Sprintf("thermotec-aeroflow_%s_%s", heaterType, identifier)
}

// NewClimate maps module telemetry to the heater entity.
func NewClimate(data *flexismart.ModuleData, available bool) Climate {
	name := fmt.Sprintf("Thermotec AeroFlow - %s - %s", heaterType, data.Identifier)

	var antiFreeze float64
	if data.Extended {
		antiFreeze = data.AntiFreezeTemperature
	}

	return Climate{
		UniqueID:           ClimateUniqueID(data.Identifier),
		Name:               name,
		Identifier:         data.Identifier,
		Zone:               data.Zone,
		Module:             data.Module,
		Available:          available,
		CurrentTemperature: data.CurrentTemperature,
		TargetTemperature:  data.TargetTemperature,
		MinTemp:            MinTemp,
		MaxTemp:            MaxTemp,
		HVACMode:           HVACModeHeat,
		HVACAction:         HVACAction(data.CurrentTemperature, data.TargetTemperature),
		PresetMode:         PresetMode(data),
		Attributes: ClimateAttributes{
			WindowOpenDetection:   data.WindowOpenDetection,
			AntiFreezeTemperature: antiFreeze,
			BoostTimeLeft:         data.BoostTimeLeftString(),
			TemperatureOffset:     data.TemperatureOffset,
			Zone:                  data.Zone,
			Module:                data.Module,
		},
		Device: DeviceInfo{
			Identifiers:  []string{fmt.Sprintf("thermotec-aeroflow_%s", data.Identifier)},
			Name:         name,
			Manufacturer: Manufacturer,
			SWVersion:    strings.ReplaceAll(data.FirmwareVersion, "v", ""),
		},
	}
}

// ClimateFromDevice builds the heater entity from a device coordinator.
// It reports false until the module has been read successfully once.
func ClimateFromDevice(dc *coordinator.DeviceCoordinator) (Climate, bool) {
	data, ok := dc.Data()
	if !ok || data == nil {
		return Climate{}, false
	}
	return NewClimate(data, dc.IsAvailable()), true
}

// PresetMode derives the preset from module data. Boost wins over holiday.
func PresetMode(data *flexismart.ModuleData) string {
	if data.BoostActive {
		return PresetBoost
	}
	if data.Extended && data.Holiday.Active {
		return PresetAway
	}
	return PresetHome
}

// HVACAction is heating while the room is below target, idle otherwise.
func HVACAction(current, target float64) string {
	if current < target {
		return HVACActionHeating
	}
	return HVACActionIdle
}

// ClampTemperature limits a target temperature to [MinTemp, MaxTemp].
func ClampTemperature(t float64) float64 {
	return max(MinTemp, min(MaxTemp, t))
}
