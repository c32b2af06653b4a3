package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zberg/go-flexismart/internal/api"
	"github.com/zberg/go-flexismart/internal/config"
	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/internal/entity"
	"github.com/zberg/go-flexismart/internal/influx"
	"github.com/zberg/go-flexismart/internal/logging"
	"github.com/zberg/go-flexismart/internal/mqtt"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the gateway and bridge it to Home Assistant",
	Long: `Polls the gateway and bridges it to Home Assistant.

SIGHUP reloads the configuration file, e.g. after reconfigure, and
reconnects to the gateway and the sinks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting flexismart")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	return supervise(ctx, loadRunConfig, serve, hup, log)
}

func loadRunConfig() (*config.Config, error) {
	return config.Load(configPath, flagOverrides)
}

// supervise runs start with the loaded configuration until ctx is done.
// Every value on reload loads the configuration again and, if it is valid,
// restarts start with it. An invalid configuration keeps the running one.
func supervise(ctx context.Context, load func() (*config.Config, error),
	start func(context.Context, *config.Config) error, reload <-chan os.Signal, log *slog.Logger) error {
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	for {
		sessionCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(cfg *config.Config) { done <- start(sessionCtx, cfg) }(cfg)

	wait:
		for {
			select {
			case err := <-done:
				cancel()
				return err
			case <-ctx.Done():
				err := <-done
				cancel()
				return err
			case <-reload:
				next, err := load()
				if err != nil {
					log.Error("reload failed, keeping the current configuration", "error", err)
					continue
				}
				log.Info("reloading configuration", "path", configPath, "host", next.Gateway.Host)
				cancel()
				if err := <-done; err != nil {
					return err
				}
				cfg = next
				break wait
			}
		}
	}
}

// serve connects to the gateway and the enabled sinks and polls until ctx
// is done. Stopping does not remove any module from Home Assistant.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)

	client, err := flexismart.NewClient(ctx, cfg.Gateway.Host,
		flexismart.WithPort(cfg.Gateway.Port),
		flexismart.WithConnectTimeout(cfg.Gateway.ConnectTimeout),
		flexismart.WithRequestTimeout(cfg.Gateway.RequestTimeout),
		flexismart.WithLogger(log.With("component", "client")),
	)
	if err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	defer client.Close()
	log.Info("gateway client ready", "addr", client.Addr())

	hub := coordinator.NewHub(client, coordinator.HubConfig{
		ZonesInterval:  cfg.Polling.ZonesInterval,
		DeviceInterval: cfg.Polling.DeviceInterval,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		Extended:       cfg.Gateway.ExtendedData,
	}, log)

	if cfg.MQTT.Enabled {
		closeMQTT, err := startBridge(ctx, cfg, client, hub, log)
		if err != nil {
			return err
		}
		defer closeMQTT()
	}

	influxClient, err := influx.Connect(ctx, cfg.InfluxDB, log.With("component", "influxdb"))
	switch {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		hub.OnDeviceAdded(influx.NewRecorder(influxClient).AttachDevice)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.With("component", "api"),
			Devices: hub,
			Gateway: hub.Gateway,
			Zones:   hub.Zones,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("flexismart running", "gateway", client.Addr())
	if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down", "gateway", client.Addr())
	return nil
}

// startBridge connects to the broker and mirrors hub to Home Assistant. The
// returned func disconnects.
func startBridge(ctx context.Context, cfg *config.Config, client *flexismart.Client, hub *coordinator.Hub, log *slog.Logger) (func(), error) {
	var bridge atomic.Pointer[mqtt.Bridge]
	mqttClient, err := mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"), func() {
		// Retained state is gone when the broker restarted.
		if b := bridge.Load(); b != nil {
			b.Republish()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	b := mqtt.NewBridge(mqttClient,
		mqtt.NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.DiscoveryPrefix),
		hub,
		entity.NewActions(client, log.With("component", "actions")),
		cfg.Gateway.ExtendedData,
		log.With("component", "bridge"),
	)
	if err := b.Start(ctx); err != nil {
		_ = mqttClient.Close()
		return nil, err
	}
	b.AttachGateway(hub.Gateway)
	hub.OnDeviceAdded(b.AddDevice)
	hub.OnDeviceRemoved(b.RemoveDevice)
	bridge.Store(b)

	return func() {
		log.Info("disconnecting from MQTT")
		if err := mqttClient.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}, nil
}
