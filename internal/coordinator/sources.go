package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zberg/go-flexismart/internal/health"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

// Poll intervals of the built-in data sources.
const (
	ZonesInterval  = 30 * time.Second
	DeviceInterval = health.DefaultInterval
)

// Gateway is the part of the gateway client the coordinators poll.
// *flexismart.Client implements it.
type Gateway interface {
	Ping(ctx context.Context) error
	GetGatewayData(ctx context.Context) (*flexismart.GatewayData, error)
	GetModuleCount(ctx context.Context, zone int) (int, error)
	GetModuleData(ctx context.Context, zone, module int, extended bool) (*flexismart.ModuleData, error)
	UpdateDateTime(ctx context.Context, now time.Time) error
}

// GatewayInfo is the gateway metadata shown on the gateway device.
type GatewayInfo struct {
	FirmwareVersion string `json:"fw_version"`
	Model           string `json:"model"`
	DeviceName      string `json:"device_name"`
	MACAddress      string `json:"mac_address"`
	IPAddress       string `json:"ip_address"`
}

// describeFailure wraps a client error with the kind of failure it is.
func describeFailure(what string, err error) error {
	switch {
	case errors.Is(err, flexismart.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timeout fetching %s: %w", what, err)
	case errors.Is(err, flexismart.ErrInvalidResponse):
		return fmt.Errorf("invalid response fetching %s: %w", what, err)
	case errors.Is(err, flexismart.ErrInvalidRequest):
		return fmt.Errorf("invalid request fetching %s: %w", what, err)
	default:
		return fmt.Errorf("unexpected error fetching %s: %w", what, err)
	}
}

// NewZonesCoordinator polls the list of zones configured on the gateway.
func NewZonesCoordinator(gw Gateway, interval time.Duration, opts ...Option) *Coordinator[[]int] {
	logger := loggerOrDiscard(collect(opts).logger)
	return New("zones", interval, func(ctx context.Context) ([]int, error) {
		data, err := gw.GetGatewayData(ctx)
		if err != nil {
			err = describeFailure("zones", err)
			logger.Error(err.Error())
			return nil, err
		}
		zones := append([]int(nil), data.Zones...)
		logger.Debug("updated zones", "zones", zones)
		return zones, nil
	}, opts...)
}

// NewGatewayCoordinator polls gateway metadata.
func NewGatewayCoordinator(gw Gateway, interval time.Duration, opts ...Option) *Coordinator[GatewayInfo] {
	logger := loggerOrDiscard(collect(opts).logger)
	return New("gateway", interval, func(ctx context.Context) (GatewayInfo, error) {
		data, err := gw.GetGatewayData(ctx)
		if err != nil {
			err = describeFailure("gateway data", err)
			logger.Error(err.Error())
			return GatewayInfo{}, err
		}
		info := GatewayInfo{
			FirmwareVersion: data.FirmwareVersion,
			Model:           data.Model,
			DeviceName:      data.DeviceName,
			MACAddress:      data.MACAddress.String(),
			IPAddress:       data.IPAddress.String(),
		}
		logger.Debug("updated gateway data", "info", info)
		return info, nil
	}, opts...)
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// loggerOrDiscard keeps call sites free of nil checks.
func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
