package flexismart

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPort_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithPort(6653)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 6653, cfg.port)

	err = WithPort(1)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.port)

	err = WithPort(65535)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 65535, cfg.port)
}

func TestWithPort_Invalid(t *testing.T) {
	cfg := defaultConfig()

	assert.Error(t, WithPort(0)(cfg))
	assert.Error(t, WithPort(-1)(cfg))
	assert.Error(t, WithPort(65536)(cfg))
}

func TestWithConnectTimeout(t *testing.T) {
	cfg := defaultConfig()

	require.NoError(t, WithConnectTimeout(10*time.Second)(cfg))
	assert.Equal(t, 10*time.Second, cfg.connectTimeout)

	assert.Error(t, WithConnectTimeout(0)(cfg))
	assert.Error(t, WithConnectTimeout(-1*time.Second)(cfg))
}

func TestWithRequestTimeout(t *testing.T) {
	cfg := defaultConfig()

	require.NoError(t, WithRequestTimeout(5*time.Second)(cfg))
	assert.Equal(t, 5*time.Second, cfg.requestTimeout)

	assert.Error(t, WithRequestTimeout(0)(cfg))
	assert.Error(t, WithRequestTimeout(-1*time.Second)(cfg))
}

func TestWithLogger(t *testing.T) {
	cfg := defaultConfig()
	assert.Nil(t, cfg.logger)

	logger := slog.Default()
	require.NoError(t, WithLogger(logger)(cfg))
	assert.Equal(t, logger, cfg.logger)

	require.NoError(t, WithLogger(nil)(cfg))
	assert.Nil(t, cfg.logger)
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 6653, cfg.port)
	assert.Equal(t, 5*time.Second, cfg.connectTimeout)
	assert.Equal(t, 20*time.Second, cfg.requestTimeout)
	assert.Nil(t, cfg.logger)
}

func TestWithRetransmitInterval(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 2*time.Second, cfg.retransmit)

	require.NoError(t, WithRetransmitInterval(500*time.Millisecond)(cfg))
	assert.Equal(t, 500*time.Millisecond, cfg.retransmit)

	require.NoError(t, WithRetransmitInterval(0)(cfg))
	assert.Zero(t, cfg.retransmit)

	assert.Error(t, WithRetransmitInterval(-time.Second)(cfg))
}
