package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("2hr")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	d, err = ParseDuration("500ms")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	_, err = ParseDuration("xhr")
	assert.Error(t, err)
}

func TestParseConfigDefaults(t *testing.T) {
	config, err := ParseConfig([]byte("linkmon:\n  source_host: edge-1\n"))
	require.NoError(t, err)

	assert.Equal(t, "edge-1", config.LinkMon.SourceHost)
	assert.Equal(t, "edge-1", config.LinkMon.DeviceName)
	assert.Equal(t, 20, config.LinkMon.WindowSize)
	assert.Equal(t, 1, config.LinkMon.ChangeThreshold)
	assert.Equal(t, 10, config.FailureLimit())
	assert.Equal(t, SourceProc, config.Source.Type)
	assert.Equal(t, "wlan0", config.Source.Interface)
	assert.Equal(t, "/proc/net/wireless", config.Source.Path)
	assert.Equal(t, "linkmon", config.InfluxDB.Measurement)
	assert.Equal(t, "linkmon", config.MQTT.TopicPrefix)

	timing, err := config.Timing()
	require.NoError(t, err)
	assert.Equal(t, Timing{
		Interval:       500 * time.Millisecond,
		StartupTimeout: 30 * time.Second,
		AbortDelay:     5 * time.Second,
	}, timing)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
linkmon:
  device_name: AE-TEST-2
  interval: 1s
  window_size: 100
  change_threshold: 3
source:
  type: iw
  interface: wlp2s0
influxdb:
  enabled: true
  host: influx.local
  port: 8086
  token: from-file
mqtt:
  enabled: true
  broker: localhost:1883
  qos: 1
`), 0600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "AE-TEST-2", config.LinkMon.DeviceName)
	assert.Equal(t, 100, config.LinkMon.WindowSize)
	assert.Equal(t, 3, config.LinkMon.ChangeThreshold)
	assert.Equal(t, SourceIW, config.Source.Type)
	assert.Equal(t, "wlp2s0", config.Source.Interface)
	assert.Equal(t, "https://influx.local:8086", config.InfluxURL())
	assert.Equal(t, "from-file", config.InfluxDB.Token)
	assert.Equal(t, byte(1), config.MQTT.QoS)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseConfigEnvOverrides(t *testing.T) {
	t.Setenv("LINKMON_INFLUXDB_TOKEN", "from-env")
	t.Setenv("LINKMON_MQTT_PASSWORD", "pineapple")

	config, err := ParseConfig([]byte("influxdb:\n  token: from-file\nmqtt:\n  username: gary\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.InfluxDB.Token)
	assert.Equal(t, "gary", config.MQTT.Username)
	assert.Equal(t, "pineapple", config.MQTT.Password)
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"window too large", "linkmon:\n  window_size: 70000\n"},
		{"negative window", "linkmon:\n  window_size: -1\n"},
		{"negative failure limit", "linkmon:\n  max_consecutive_failures: -2\n"},
		{"bad interval", "linkmon:\n  interval: soon\n"},
		{"zero interval", "linkmon:\n  interval: 0s\n"},
		{"unknown source", "source:\n  type: serial\n"},
		{"static out of range", "source:\n  type: static\n  static_value: -200\n"},
		{"influx without host", "influxdb:\n  enabled: true\n"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n"},
		{"bad qos", "mqtt:\n  qos: 3\n"},
		{"not yaml", "linkmon: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigExplicitZeroFailureLimit(t *testing.T) {
	config, err := ParseConfig([]byte("linkmon:\n  max_consecutive_failures: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, config.FailureLimit())

	config, err = ParseConfig([]byte("linkmon:\n  max_consecutive_failures: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, config.FailureLimit())
}

func TestParseConfigWindowSizeError(t *testing.T) {
	_, err := ParseConfig([]byte("linkmon:\n  window_size: 70000\n"))
	assert.ErrorIs(t, err, ErrInvalidWindowSize)
}
