package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-flexismart/internal/config"
)

func writeRunConfig(t *testing.T, path, gateway string) {
	t.Helper()
	content := gateway + `
  request_timeout: 200ms
mqtt:
  enabled: false
api:
  enabled: false
logging:
  level: error
  output: stderr
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadRunConfig_HostFlagFillsMissingHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flexismart.yaml")
	writeRunConfig(t, path, "gateway:")

	setFlags(t, path, "", 0)
	_, err := loadRunConfig()
	require.ErrorContains(t, err, "gateway.host is required")

	setFlags(t, path, "127.0.0.1", 7000)
	cfg, err := loadRunConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, 7000, cfg.Gateway.Port)
}

// listenGateway returns a silent loopback UDP peer and a channel that
// receives a value whenever a datagram arrives.
func listenGateway(t *testing.T) (int, <-chan struct{}) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	got := make(chan struct{}, 1)
	go func() {
		buf := make([]byte, 2048)
		for {
			if _, _, err := conn.ReadFromUDP(buf); err != nil {
				return
			}
			select {
			case got <- struct{}{}:
			default:
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).Port, got
}

func waitPacket(t *testing.T, ch <-chan struct{}, name string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("gateway %s was not polled", name)
	}
}

func TestSupervise_ReloadPollsNewGateway(t *testing.T) {
	portA, gotA := listenGateway(t)
	portB, gotB := listenGateway(t)

	path := filepath.Join(t.TempDir(), "flexismart.yaml")
	writeRunConfig(t, path, fmt.Sprintf("gateway:\n  host: 127.0.0.1\n  port: %d", portA))
	setFlags(t, path, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- supervise(ctx, loadRunConfig, serve, reload, slog.New(slog.DiscardHandler))
	}()

	waitPacket(t, gotA, "A")

	writeRunConfig(t, path, fmt.Sprintf("gateway:\n  host: 127.0.0.1\n  port: %d", portB))
	reload <- syscall.SIGHUP
	waitPacket(t, gotB, "B")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("supervise did not stop")
	}
}

func TestSupervise_InvalidReloadKeepsRunning(t *testing.T) {
	loads := 0
	load := func() (*config.Config, error) {
		loads++
		if loads > 1 {
			return nil, errors.New("gateway.host is required")
		}
		cfg := config.Default()
		cfg.Gateway.Host = "10.0.0.5"
		return cfg, nil
	}

	started := make(chan string, 4)
	start := func(ctx context.Context, cfg *config.Config) error {
		started <- cfg.Gateway.Host
		<-ctx.Done()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan os.Signal)
	done := make(chan error, 1)
	go func() { done <- supervise(ctx, load, start, reload, slog.New(slog.DiscardHandler)) }()

	assert.Equal(t, "10.0.0.5", <-started)
	reload <- syscall.SIGHUP
	// A second send only gets through once the first reload was handled.
	reload <- syscall.SIGHUP

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, started, "serve must not restart on an invalid configuration")
	assert.Equal(t, 3, loads)
}

func TestSupervise_StartErrorStops(t *testing.T) {
	load := func() (*config.Config, error) { return config.Default(), nil }
	boom := errors.New("bind failed")
	start := func(context.Context, *config.Config) error { return boom }

	err := supervise(context.Background(), load, start, nil, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, boom)
}
