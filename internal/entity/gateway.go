package entity

import "github.com/zberg/go-flexismart/internal/coordinator"

const (
	GatewayName     = "Thermotec AeroFlow Gateway"
	GatewayUniqueID = "thermotec-aeroflow_gateway"

	defaultGatewayModel = "FlexiSmart Gateway"
	unknown             = "Unknown"
)

// Gateway is the state of the gateway device.
type Gateway struct {
	UniqueID  string                  `json:"unique_id"`
	Name      string                  `json:"name"`
	Available bool                    `json:"available"`
	Info      coordinator.GatewayInfo `json:"info"`
	Device    DeviceInfo              `json:"device"`
}

// NewGateway maps gateway metadata to the gateway entity. Missing metadata
// falls back to generic values.
func NewGateway(info coordinator.GatewayInfo, available bool) Gateway {
	model := info.Model
	if model == "" {
		model = defaultGatewayModel
	}
	sw := info.FirmwareVersion
	if sw == "" {
		sw = unknown
	}
	hw := info.MACAddress
	if hw == "" {
		hw = unknown
	}

	return Gateway{
		UniqueID:  GatewayUniqueID,
		Name:      GatewayName,
		Available: available,
		Info:      info,
		Device: DeviceInfo{
			Identifiers:  []string{GatewayUniqueID},
			Name:         GatewayName,
			Manufacturer: Manufacturer,
			Model:        model,
			SWVersion:    sw,
			HWVersion:    hw,
		},
	}
}

// GatewayFromCoordinator builds the gateway entity. It is available iff the
// last gateway update succeeded.
func GatewayFromCoordinator(c *coordinator.Coordinator[coordinator.GatewayInfo]) Gateway {
	info, _ := c.Data()
	return NewGateway(info, c.LastUpdateSuccess())
}
