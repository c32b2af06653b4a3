package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Polling  PollingConfig  `yaml:"polling"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig is the gateway entry: where it is and how to talk to it.
type GatewayConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ExtendedData   bool          `yaml:"extended_data"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// PollingConfig holds the normal poll intervals.
type PollingConfig struct {
	ZonesInterval  time.Duration `yaml:"zones_interval"`
	DeviceInterval time.Duration `yaml:"device_interval"`
}

// MQTTConfig contains the Home Assistant MQTT bridge settings.
type MQTTConfig struct {
	Enabled         bool                `yaml:"enabled"`
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	QoS             int                 `yaml:"qos"`
	BaseTopic       string              `yaml:"base_topic"`
	DiscoveryPrefix string              `yaml:"discovery_prefix"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // milliseconds
}

// APIConfig contains the status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads path, applies environment overrides, then each of overrides
// in order, and validates the result.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// readFile decodes path over the defaults.
func readFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with every default filled in and no gateway host.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:           6653,
			ExtendedData:   true,
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 20 * time.Second,
		},
		Polling: PollingConfig{
			ZonesInterval:  30 * time.Second,
			DeviceInterval: 35 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flexismart",
			},
			QoS:             1,
			BaseTopic:       "flexismart",
			DiscoveryPrefix: "homeassistant",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "flexismart",
			BatchSize:     100,
			FlushInterval: 10000,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies FLEXISMART_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLEXISMART_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}

	if v := os.Getenv("FLEXISMART_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLEXISMART_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLEXISMART_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FLEXISMART_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("FLEXISMART_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required (set FLEXISMART_GATEWAY_HOST or run setup)")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.RequestTimeout <= 0 {
		errs = append(errs, "gateway.request_timeout must be positive")
	}
	if c.Gateway.ConnectTimeout <= 0 {
		errs = append(errs, "gateway.connect_timeout must be positive")
	}

	if c.Polling.ZonesInterval <= 0 {
		errs = append(errs, "polling.zones_interval must be positive")
	}
	if c.Polling.DeviceInterval <= 0 {
		errs = append(errs, "polling.device_interval must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.BaseTopic == "" || strings.ContainsAny(c.MQTT.BaseTopic, "#+") {
			errs = append(errs, "mqtt.base_topic must be a non-empty topic without wildcards")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Save writes cfg to path as YAML with owner-only permissions.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
