// Package influx records module telemetry and availability history in
// InfluxDB. Writes are non-blocking and batched; write errors are logged.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/zberg/go-flexismart/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushInterval  = 10000 // milliseconds
)

// Client is a batching InfluxDB writer.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Connect pings the server in cfg and opens a non-blocking write API.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)))

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	errorsCh := c.writeAPI.Errors()
	go func() {
		for err := range errorsCh {
			logger.Warn("influxdb write failed", "error", err)
		}
	}()

	return c, nil
}

// WritePoint queues p for the next batch.
func (c *Client) WritePoint(p *write.Point) {
	c.writeAPI.WritePoint(p)
}

// Flush sends all queued points.
func (c *Client) Flush() {
	c.writeAPI.Flush()
}

// Close flushes pending points and closes the client.
func (c *Client) Close() error {
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
