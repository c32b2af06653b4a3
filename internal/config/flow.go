package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/zberg/go-flexismart/pkg/flexismart"
)

// EntryTitle is the display name of a configured gateway.
const EntryTitle = "Thermotec AeroFlow® FlexiSmart Gateway"

var (
	// ErrCannotConnect means the gateway did not answer a ping.
	ErrCannotConnect = errors.New("cannot_connect")
	// ErrUnknown wraps any other validation failure.
	ErrUnknown = errors.New("unknown")
	// ErrAlreadyConfigured is returned by Setup when the file already exists.
	ErrAlreadyConfigured = errors.New("already_configured")
)

// Pinger is a gateway connection that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc opens a connection to the gateway described by gw.
type DialFunc func(ctx context.Context, gw GatewayConfig) (Pinger, error)

// DialGateway opens a flexismart client for gw.
func DialGateway(logger *slog.Logger) DialFunc {
	return func(ctx context.Context, gw GatewayConfig) (Pinger, error) {
		opts := []flexismart.ClientOption{flexismart.WithLogger(logger)}
		if gw.Port != 0 {
			opts = append(opts, flexismart.WithPort(gw.Port))
		}
		if gw.ConnectTimeout > 0 {
			opts = append(opts, flexismart.WithConnectTimeout(gw.ConnectTimeout))
		}
		if gw.RequestTimeout > 0 {
			opts = append(opts, flexismart.WithRequestTimeout(gw.RequestTimeout))
		}
		client, err := flexismart.NewClient(ctx, gw.Host, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// ValidateGateway checks that the gateway in gw answers a ping and returns
// the entry title. A silent or unreachable gateway is ErrCannotConnect;
// anything else is ErrUnknown.
func ValidateGateway(ctx context.Context, dial DialFunc, gw GatewayConfig) (string, error) {
	if gw.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrUnknown)
	}

	client, err := dial(ctx, gw)
	if err != nil {
		return "", classify(err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return "", classify(err)
	}
	return EntryTitle, nil
}

func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, flexismart.ErrRequestTimeout),
		errors.Is(err, flexismart.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
}

// Setup validates gw and writes a new configuration file at path with
// defaults for everything else. An existing file is left alone.
func Setup(ctx context.Context, path string, dial DialFunc, gw GatewayConfig) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s exists, use reconfigure", ErrAlreadyConfigured, path)
	}

	cfg := Default()
	mergeGateway(&cfg.Gateway, gw)

	if _, err := ValidateGateway(ctx, dial, cfg.Gateway); err != nil {
		return nil, err
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reconfigure loads the file at path, lets edit change the gateway entry
// (prefilled with its current values), validates it and writes the file
// back. Other sections are kept as they are.
func Reconfigure(ctx context.Context, path string, dial DialFunc, edit func(*GatewayConfig)) (*Config, error) {
	// Environment overrides are not applied so that secrets set there
	// are not written to the file.
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	gw := cfg.Gateway
	edit(&gw)
	mergeGateway(&cfg.Gateway, gw)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if _, err := ValidateGateway(ctx, dial, cfg.Gateway); err != nil {
		return nil, err
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeGateway copies the set fields of src into dst.
func mergeGateway(dst *GatewayConfig, src GatewayConfig) {
	dst.Host = src.Host
	dst.ExtendedData = src.ExtendedData
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.ConnectTimeout > 0 {
		dst.ConnectTimeout = src.ConnectTimeout
	}
	if src.RequestTimeout > 0 {
		dst.RequestTimeout = src.RequestTimeout
	}
}
