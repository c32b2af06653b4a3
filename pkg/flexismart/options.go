package flexismart

import (
	"errors"
	"log/slog"
	"time"
)

// DefaultPort is the UDP port FlexiSmart gateways listen on.
const DefaultPort = 6653

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	port           int
	connectTimeout time.Duration
	requestTimeout time.Duration
	retransmit     time.Duration
	logger         *slog.Logger
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		port:           DefaultPort,
		connectTimeout: 5 * time.Second,
		requestTimeout: 20 * time.Second,
		retransmit:     2 * time.Second,
		logger:         nil,
	}
}

// WithPort sets the UDP port of the gateway.
// Default is 6653.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithConnectTimeout sets the timeout for resolving and binding the socket.
// Default is 5 seconds.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithRequestTimeout sets the timeout for waiting for a response when the
// request context carries no deadline of its own.
// Default is 20 seconds.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithRetransmitInterval sets how often an unanswered request is sent
// again while waiting for its response. Datagrams to the gateway are
// occasionally lost. Zero sends each request once.
// Default is 2 seconds.
func WithRetransmitInterval(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d < 0 {
			return errors.New("retransmit interval must not be negative")
		}
		c.retransmit = d
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}
