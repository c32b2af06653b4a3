package influx

import "errors"

var (
	// ErrDisabled is returned by Connect when InfluxDB is turned off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server does not answer a ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
