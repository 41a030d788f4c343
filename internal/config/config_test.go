package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/config"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// load isolates Load from the host: no args, no search paths, no DALYBMS_CONFIG
func load(t *testing.T, opts ...config.Option) (*config.Config, error) {
	t.Helper()
	t.Setenv("DALYBMS_CONFIG", "")

	base := []config.Option{
		config.WithArgs([]string{}),
		config.WithSearchPaths(t.TempDir()),
	}
	return config.Load(append(base, opts...)...)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err, "Failed to load config")

	assert.Empty(t, cfg.SerialPort)
	assert.Equal(t, 4, cfg.BMSAddress)
	assert.Equal(t, 3, cfg.RequestRetries)
	assert.Equal(t, time.Second, cfg.ReadInterval)
	assert.Equal(t, time.Second, cfg.PublishInterval)
	assert.Equal(t, "daly_bms", cfg.NodeName)
	assert.Equal(t, "daly_bms", cfg.FrameID)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "dalybms-bridge", cfg.MQTT.ClientID)
	assert.Equal(t, 0, cfg.MQTT.QoS)
	assert.False(t, cfg.MQTT.Retain)
	assert.Equal(t, 10, cfg.MQTT.QueueDepth)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9105", cfg.Metrics.ListenAddress)

	busCfg := cfg.BusConfig()
	assert.Equal(t, "daly_bms/data", busCfg.Topic)
	assert.Equal(t, byte(0), busCfg.QoS)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dalybms-bridge.toml", `
serial_port = "/dev/ttyUSB0"
bms_address = 8
request_retries = 5
read_interval = "2s"
publish_interval = "500ms"
node_name = "shed"
log_level = "debug"

[mqtt]
broker = "tcp://broker:1883"
username = "bms"
password = "secret"
qos = 1
retain = true
queue_depth = 20

[metrics]
enabled = true
listen_address = "127.0.0.1:9200"
`)
	t.Setenv("DALYBMS_CONFIG", path)

	cfg, err := config.Load(config.WithArgs(nil), config.WithSearchPaths(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 8, cfg.BMSAddress)
	assert.Equal(t, 5, cfg.RequestRetries)
	assert.Equal(t, 2*time.Second, cfg.ReadInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PublishInterval)
	assert.Equal(t, "shed", cfg.NodeName)
	assert.Equal(t, "daly_bms", cfg.FrameID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "bms", cfg.MQTT.Username)
	assert.Equal(t, "secret", cfg.MQTT.Password)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.Retain)
	assert.Equal(t, 20, cfg.MQTT.QueueDepth)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9200", cfg.Metrics.ListenAddress)

	busCfg := cfg.BusConfig()
	assert.Equal(t, "shed/data", busCfg.Topic)
	assert.Equal(t, byte(1), busCfg.QoS)
	assert.True(t, busCfg.Retain)
	assert.Equal(t, 20, busCfg.QueueDepth)

	metricsCfg := cfg.MetricsConfig()
	assert.True(t, metricsCfg.Enabled)
	assert.Equal(t, "127.0.0.1:9200", metricsCfg.ListenAddress)
}

func TestLoadSearchPath(t *testing.T) {
	t.Setenv("DALYBMS_CONFIG", "")

	dir := t.TempDir()
	writeFile(t, dir, "dalybms-bridge.toml", `node_name = "garage"`)

	cfg, err := config.Load(config.WithArgs(nil), config.WithSearchPaths(dir))
	require.NoError(t, err)
	assert.Equal(t, "garage", cfg.NodeName)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := load(t, config.WithConfigFile(filepath.Join(t.TempDir(), "absent.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dalybms-bridge.toml", `
This is not a valid TOML file
`)

	_, err := load(t, config.WithConfigFile(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dalybms-bridge.toml", `
log_level = "invalid"
`)

	_, err := load(t, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidInterval(t *testing.T) {
	_, err := load(t, config.WithArgs([]string{"--read-interval", "0s"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"address out of range", []string{"--bms-address", "16"}},
		{"no retries", []string{"--request-retries", "0"}},
		{"qos out of range", []string{"--mqtt-qos", "3"}},
		{"empty broker", []string{"--mqtt-broker", ""}},
		{"metrics without address", []string{"--metrics", "--metrics-listen", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, config.WithArgs(tt.args))
			require.Error(t, err)
		})
	}
}

func TestUnknownFlag(t *testing.T) {
	_, err := load(t, config.WithArgs([]string{"--no-such-flag"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestLogLevelFlag(t *testing.T) {
	cfg, err := load(t, config.WithArgs([]string{"--log-level", "debug"}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestEnvironment(t *testing.T) {
	t.Setenv("DALYBMS_SERIAL_PORT", "/dev/ttyAMA0")
	t.Setenv("DALYBMS_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("DALYBMS_PUBLISH_INTERVAL", "3s")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyAMA0", cfg.SerialPort)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
	assert.Equal(t, 3*time.Second, cfg.PublishInterval)
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("BRIDGE_NODE_NAME", "loft")

	cfg, err := load(t, config.WithEnvPrefix("BRIDGE"))
	require.NoError(t, err)
	assert.Equal(t, "loft", cfg.NodeName)
}

func TestDotEnv(t *testing.T) {
	// godotenv writes to the process environment; register cleanup first
	t.Setenv("DALYBMS_FRAME_ID", "")
	require.NoError(t, os.Unsetenv("DALYBMS_FRAME_ID"))

	path := writeFile(t, t.TempDir(), ".env", "DALYBMS_FRAME_ID=battery_link\n")

	cfg, err := load(t, config.WithDotEnv(path))
	require.NoError(t, err)
	assert.Equal(t, "battery_link", cfg.FrameID)
}

func TestDotEnvMissing(t *testing.T) {
	_, err := load(t, config.WithDotEnv(filepath.Join(t.TempDir(), ".env")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestPrecedence(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dalybms-bridge.toml", `
node_name = "file"
frame_id = "file"
log_level = "error"
`)
	t.Setenv("DALYBMS_FRAME_ID", "env")
	t.Setenv("DALYBMS_LOG_LEVEL", "warning")

	cfg, err := load(t,
		config.WithConfigFile(path),
		config.WithArgs([]string{"--log-level", "debug"}),
	)
	require.NoError(t, err)

	// file over default, env over file, flag over env
	assert.Equal(t, "file", cfg.NodeName)
	assert.Equal(t, "env", cfg.FrameID)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.toml", `node_name = "flagged"`)

	cfg, err := load(t, config.WithArgs([]string{"--config", path}))
	require.NoError(t, err)
	assert.Equal(t, "flagged", cfg.NodeName)
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{
		config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarning, config.LogLevelError,
	} {
		assert.True(t, l.IsValid(), l.String())
	}
	assert.False(t, config.LogLevel("trace").IsValid())
}
