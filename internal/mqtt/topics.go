package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zberg/go-flexismart/internal/coordinator"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	defaultBaseTopic       = "flexismart"
	defaultDiscoveryPrefix = "homeassistant"
)

// Heater command names, the last level of a heater command topic.
const (
	CommandTemperature           = "temperature"
	CommandPresetMode            = "preset_mode"
	CommandWindowOpenDetection   = "window_open_detection"
	CommandAntiFreezeTemperature = "anti_freeze_temperature"
)

// Topics builds every topic the bridge uses.
type Topics struct {
	base      string
	discovery string
}

// NewTopics returns the topic layout under base, with discovery configs
// under discoveryPrefix. Empty values select the defaults.
func NewTopics(base, discoveryPrefix string) Topics {
	if base == "" {
		base = defaultBaseTopic
	}
	if discoveryPrefix == "" {
		discoveryPrefix = defaultDiscoveryPrefix
	}
	return Topics{base: strings.TrimSuffix(base, "/"), discovery: strings.TrimSuffix(discoveryPrefix, "/")}
}

// BridgeAvailability carries the daemon's own online/offline status.
func (t Topics) BridgeAvailability() string {
	return t.base + "/bridge/availability"
}

// ObjectID is the topic level naming one module.
func ObjectID(key coordinator.ModuleKey) string {
	return fmt.Sprintf("%d_%d", key.Zone, key.Module)
}

func (t Topics) heater(key coordinator.ModuleKey) string {
	return t.base + "/heater/" + ObjectID(key)
}

func (t Topics) HeaterState(key coordinator.ModuleKey) string {
	return t.heater(key) + "/state"
}

func (t Topics) HeaterAvailability(key coordinator.ModuleKey) string {
	return t.heater(key) + "/availability"
}

func (t Topics) HeaterCommand(key coordinator.ModuleKey, command string) string {
	return t.heater(key) + "/set/" + command
}

// HeaterCommandFilter matches the command topics of every module.
func (t Topics) HeaterCommandFilter() string {
	return t.base + "/heater/+/set/+"
}

// ParseHeaterCommand extracts the module and command from a heater command
// topic.
func (t Topics) ParseHeaterCommand(topic string) (coordinator.ModuleKey, string, error) {
	rest, ok := strings.CutPrefix(topic, t.base+"/heater/")
	if !ok {
		return coordinator.ModuleKey{}, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "set" || parts[2] == "" {
		return coordinator.ModuleKey{}, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	zoneStr, moduleStr, ok := strings.Cut(parts[0], "_")
	if !ok {
		return coordinator.ModuleKey{}, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	zone, err := strconv.Atoi(zoneStr)
	if err != nil {
		return coordinator.ModuleKey{}, "", fmt.Errorf("%w: zone in %s", ErrInvalidTopic, topic)
	}
	module, err := strconv.Atoi(moduleStr)
	if err != nil {
		return coordinator.ModuleKey{}, "", fmt.Errorf("%w: module in %s", ErrInvalidTopic, topic)
	}
	return coordinator.ModuleKey{Zone: zone, Module: module}, parts[2], nil
}

func (t Topics) GatewayState() string {
	return t.base + "/gateway/state"
}

func (t Topics) GatewayAvailability() string {
	return t.base + "/gateway/availability"
}

// GatewayUpdateDateTime triggers a clock sync of the gateway.
func (t Topics) GatewayUpdateDateTime() string {
	return t.base + "/gateway/update_date_time"
}

// Discovery is the Home Assistant discovery config topic of one entity.
func (t Topics) Discovery(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.discovery, component, objectID)
}
