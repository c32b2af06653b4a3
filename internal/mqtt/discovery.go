package mqtt

import (
	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/internal/entity"
)

// Home Assistant discovery payloads, using the abbreviated keys.

type Availability struct {
	Topic string `json:"t"`
}

type Device struct {
	Identifiers  []string `json:"ids"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"mf"`
	Model        string   `json:"mdl,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
	HWVersion    string   `json:"hw,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type ClimateConfig struct {
	Name             string         `json:"name"`
	UniqueID         string         `json:"uniq_id"`
	Availability     []Availability `json:"avty"`
	AvailabilityMode string         `json:"avty_mode"`

	CurrentTemperatureTopic    string `json:"curr_temp_t"`
	CurrentTemperatureTemplate string `json:"curr_temp_tpl"`
	TemperatureStateTopic      string `json:"temp_stat_t"`
	TemperatureStateTemplate   string `json:"temp_stat_tpl"`
	TemperatureCommandTopic    string `json:"temp_cmd_t"`

	ModeStateTopic    string   `json:"mode_stat_t"`
	ModeStateTemplate string   `json:"mode_stat_tpl"`
	Modes             []string `json:"modes"`

	ActionTopic    string `json:"act_t"`
	ActionTemplate string `json:"act_tpl"`

	PresetModeStateTopic    string   `json:"pr_mode_stat_t"`
	PresetModeValueTemplate string   `json:"pr_mode_val_tpl"`
	PresetModeCommandTopic  string   `json:"pr_mode_cmd_t"`
	PresetModes             []string `json:"pr_modes"`

	JSONAttributesTopic    string `json:"json_attr_t"`
	JSONAttributesTemplate string `json:"json_attr_tpl"`

	MinTemp         float64 `json:"min_temp"`
	MaxTemp         float64 `json:"max_temp"`
	TempStep        float64 `json:"temp_step"`
	TemperatureUnit string  `json:"temp_unit"`

	Device Device `json:"dev"`
}

// EntityConfig covers the switch, number, binary_sensor and button
// components.
type EntityConfig struct {
	Name              string         `json:"name"`
	UniqueID          string         `json:"uniq_id"`
	DeviceClass       string         `json:"dev_cla,omitempty"`
	EntityCategory    string         `json:"ent_cat,omitempty"`
	UnitOfMeasurement string         `json:"unit_of_meas,omitempty"`
	StateTopic        string         `json:"stat_t,omitempty"`
	ValueTemplate     string         `json:"val_tpl,omitempty"`
	CommandTopic      string         `json:"cmd_t,omitempty"`
	PayloadOn         string         `json:"pl_on,omitempty"`
	PayloadOff        string         `json:"pl_off,omitempty"`
	PayloadPress      string         `json:"pl_prs,omitempty"`
	Availability      []Availability `json:"avty,omitempty"`
	AvailabilityMode  string         `json:"avty_mode,omitempty"`
	Device            Device         `json:"dev"`

	// For number
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
}

const (
	componentClimate      = "climate"
	componentSwitch       = "switch"
	componentNumber       = "number"
	componentBinarySensor = "binary_sensor"
	componentButton       = "button"

	payloadOn    = "ON"
	payloadOff   = "OFF"
	payloadPress = "PRESS"
)

func deviceFrom(info entity.DeviceInfo) Device {
	return Device{
		Identifiers:  info.Identifiers,
		Name:         info.Name,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		SWVersion:    info.SWVersion,
		HWVersion:    info.HWVersion,
	}
}

func (t Topics) heaterAvailability(key coordinator.ModuleKey) []Availability {
	return []Availability{{Topic: t.BridgeAvailability()}, {Topic: t.HeaterAvailability(key)}}
}

// ClimateDiscovery is the climate entity config of a heater.
func (t Topics) ClimateDiscovery(key coordinator.ModuleKey, c entity.Climate) ClimateConfig {
	state := t.HeaterState(key)
	dev := deviceFrom(c.Device)
	dev.ViaDevice = entity.GatewayUniqueID

	return ClimateConfig{
		Name:             c.Name,
		UniqueID:         c.UniqueID,
		Availability:     t.heaterAvailability(key),
		AvailabilityMode: "all",

		CurrentTemperatureTopic:    state,
		CurrentTemperatureTemplate: "{{ value_json.current_temperature }}",
		TemperatureStateTopic:      state,
		TemperatureStateTemplate:   "{{ value_json.target_temperature }}",
		TemperatureCommandTopic:    t.HeaterCommand(key, CommandTemperature),

		ModeStateTopic:    state,
		ModeStateTemplate: "{{ value_json.hvac_mode }}",
		Modes:             []string{entity.HVACModeHeat},

		ActionTopic:    state,
		ActionTemplate: "{{ value_json.hvac_action }}",

		PresetModeStateTopic:    state,
		PresetModeValueTemplate: "{{ value_json.preset_mode }}",
		PresetModeCommandTopic:  t.HeaterCommand(key, CommandPresetMode),
		PresetModes:             entity.PresetModes,

		JSONAttributesTopic:    state,
		JSONAttributesTemplate: "{{ value_json.attributes | tojson }}",

		MinTemp:         c.MinTemp,
		MaxTemp:         c.MaxTemp,
		TempStep:        0.5,
		TemperatureUnit: "C",

		Device: dev,
	}
}

// WindowDetectionDiscovery is the switch toggling window open detection.
func (t Topics) WindowDetectionDiscovery(key coordinator.ModuleKey, c entity.Climate) EntityConfig {
	return EntityConfig{
		Name:             "Window open detection",
		UniqueID:         c.UniqueID + "_window_open_detection",
		EntityCategory:   "config",
		StateTopic:       t.HeaterState(key),
		ValueTemplate:    "{{ 'ON' if value_json.attributes.window_open_detection else 'OFF' }}",
		CommandTopic:     t.HeaterCommand(key, CommandWindowOpenDetection),
		PayloadOn:        payloadOn,
		PayloadOff:       payloadOff,
		Availability:     t.heaterAvailability(key),
		AvailabilityMode: "all",
		Device:           Device{Identifiers: c.Device.Identifiers, Name: c.Device.Name, Manufacturer: c.Device.Manufacturer},
	}
}

// AntiFreezeDiscovery is the number entity for the frost protection
// temperature. Only published with extended data.
func (t Topics) AntiFreezeDiscovery(key coordinator.ModuleKey, c entity.Climate) EntityConfig {
	lo, hi, step := float64(entity.MinAntiFreezeTemperature), float64(entity.MaxAntiFreezeTemperature), 1.0
	return EntityConfig{
		Name:              "Anti-freeze temperature",
		UniqueID:          c.UniqueID + "_anti_freeze_temperature",
		DeviceClass:       "temperature",
		EntityCategory:    "config",
		UnitOfMeasurement: entity.TemperatureUnit,
		StateTopic:        t.HeaterState(key),
		ValueTemplate:     "{{ value_json.attributes.anti_freeze_temperature }}",
		CommandTopic:      t.HeaterCommand(key, CommandAntiFreezeTemperature),
		Availability:      t.heaterAvailability(key),
		AvailabilityMode:  "all",
		Device:            Device{Identifiers: c.Device.Identifiers, Name: c.Device.Name, Manufacturer: c.Device.Manufacturer},
		Min:               &lo,
		Max:               &hi,
		Step:              &step,
	}
}

// GatewayConnectivityDiscovery reports whether the gateway answers.
func (t Topics) GatewayConnectivityDiscovery(g entity.Gateway) EntityConfig {
	return EntityConfig{
		Name:         "Connectivity",
		UniqueID:     g.UniqueID + "_connectivity",
		DeviceClass:  "connectivity",
		StateTopic:   t.GatewayAvailability(),
		PayloadOn:    PayloadOnline,
		PayloadOff:   PayloadOffline,
		Availability: []Availability{{Topic: t.BridgeAvailability()}},
		Device:       deviceFrom(g.Device),
	}
}

// GatewayClockDiscovery is the button that syncs the gateway clock.
func (t Topics) GatewayClockDiscovery(g entity.Gateway) EntityConfig {
	return EntityConfig{
		Name:             "Update date and time",
		UniqueID:         g.UniqueID + "_update_date_time",
		EntityCategory:   "config",
		CommandTopic:     t.GatewayUpdateDateTime(),
		PayloadPress:     payloadPress,
		Availability:     []Availability{{Topic: t.BridgeAvailability()}, {Topic: t.GatewayAvailability()}},
		AvailabilityMode: "all",
		Device:           deviceFrom(g.Device),
	}
}
