package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleKey(t *testing.T) {
	zone, module, err := parseModuleKey("2", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, zone)
	assert.Equal(t, 3, module)

	for _, tc := range [][2]string{{"x", "1"}, {"-1", "1"}, {"256", "1"}, {"1", "0"}, {"1", "y"}} {
		_, _, err := parseModuleKey(tc[0], tc[1])
		assert.Error(t, err, "zone %s module %s", tc[0], tc[1])
	}
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "ON", "true", "1"} {
		v, err := parseOnOff(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"off", "false", "0"} {
		v, err := parseOnOff(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}

func setFlags(t *testing.T, path, host string, port int) {
	t.Helper()
	oldPath, oldHost, oldPort := configPath, gatewayHost, gatewayPort
	configPath, gatewayHost, gatewayPort = path, host, port
	t.Cleanup(func() { configPath, gatewayHost, gatewayPort = oldPath, oldHost, oldPort })
	t.Setenv("FLEXISMART_GATEWAY_HOST", "")
}

func TestGatewayConfig_HostWithoutFile(t *testing.T) {
	setFlags(t, filepath.Join(t.TempDir(), "missing.yaml"), "192.168.1.60", 0)

	gw, err := gatewayConfig()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.60", gw.Host)
	assert.Equal(t, 6653, gw.Port)
	assert.True(t, gw.ExtendedData)
}

func TestGatewayConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flexismart.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  host: 10.0.0.5\n  extended_data: false\n"), 0o600))
	setFlags(t, path, "", 7000)

	gw, err := gatewayConfig()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", gw.Host)
	assert.Equal(t, 7000, gw.Port)
	assert.False(t, gw.ExtendedData)
}

func TestGatewayConfig_NoHost(t *testing.T) {
	setFlags(t, filepath.Join(t.TempDir(), "missing.yaml"), "", 0)

	_, err := gatewayConfig()
	assert.Error(t, err)
}
