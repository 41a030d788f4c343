package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/bus"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/metrics"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix       = "DALYBMS"
	DefaultConfigName      = "dalybms-bridge"
	DefaultLogLevel        = "info"
	DefaultBMSAddress      = 4
	DefaultRequestRetries  = 3
	DefaultReadInterval    = time.Second
	DefaultPublishInterval = time.Second
	DefaultNodeName        = "daly_bms"
	DefaultFrameID         = "daly_bms"

	defaultDotEnv = ".env"
	maxBMSAddress = 0x0f
)

var defaultSearchPaths = []string{"/etc/dalybms-bridge", "."}

type Config struct {
	SerialPort      string          `mapstructure:"serial_port"`
	BMSAddress      int             `mapstructure:"bms_address"`
	RequestRetries  int             `mapstructure:"request_retries"`
	ReadInterval    time.Duration   `mapstructure:"read_interval"`
	PublishInterval time.Duration   `mapstructure:"publish_interval"`
	NodeName        string          `mapstructure:"node_name"`
	FrameID         string          `mapstructure:"frame_id"`
	LogLevel        string          `mapstructure:"log_level"`
	MQTT            MQTTSettings    `mapstructure:"mqtt"`
	Metrics         MetricsSettings `mapstructure:"metrics"`
}

type MQTTSettings struct {
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	QoS        int    `mapstructure:"qos"`
	Retain     bool   `mapstructure:"retain"`
	QueueDepth int    `mapstructure:"queue_depth"`
}

type MetricsSettings struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

// flagBinding ties a command line flag to its configuration key
type flagBinding struct {
	key  string
	flag string
}

var flagBindings = []flagBinding{
	{"serial_port", "serial-port"},
	{"bms_address", "bms-address"},
	{"request_retries", "request-retries"},
	{"read_interval", "read-interval"},
	{"publish_interval", "publish-interval"},
	{"node_name", "node-name"},
	{"frame_id", "frame-id"},
	{"log_level", "log-level"},
	{"mqtt.broker", "mqtt-broker"},
	{"mqtt.client_id", "mqtt-client-id"},
	{"mqtt.qos", "mqtt-qos"},
	{"metrics.enabled", "metrics"},
	{"metrics.listen_address", "metrics-listen"},
}

// Load merges defaults, the config file, .env and environment variables and
// command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		args:        os.Args[1:],
		envPrefix:   DefaultEnvPrefix,
		searchPaths: defaultSearchPaths,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for _, b := range flagBindings {
		if err := v.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if err := loadDotEnv(o.dotEnvPaths); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit file: option, then flag, then environment
	configPath := o.configPath
	if f := flags.Lookup("config"); f.Changed {
		configPath = f.Value.String()
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, configPath, o.searchPaths); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial_port", "")
	v.SetDefault("bms_address", DefaultBMSAddress)
	v.SetDefault("request_retries", DefaultRequestRetries)
	v.SetDefault("read_interval", DefaultReadInterval)
	v.SetDefault("publish_interval", DefaultPublishInterval)
	v.SetDefault("node_name", DefaultNodeName)
	v.SetDefault("frame_id", DefaultFrameID)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetDefault("mqtt.broker", bus.DefaultBroker)
	v.SetDefault("mqtt.client_id", bus.DefaultClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.queue_depth", bus.DefaultQueueDepth)

	defaults := metrics.DefaultConfig()
	v.SetDefault("metrics.enabled", defaults.Enabled)
	v.SetDefault("metrics.listen_address", defaults.ListenAddress)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet(DefaultConfigName, pflag.ContinueOnError)

	flags.String("config", "", "Path to the TOML configuration file")
	flags.String("serial-port", "", "Serial port of the BMS (platform default when empty)")
	flags.Int("bms-address", DefaultBMSAddress, "BMS address (4 for RS485, 8 for Bluetooth)")
	flags.Int("request-retries", DefaultRequestRetries, "Attempts per BMS request")
	flags.Duration("read-interval", DefaultReadInterval, "Interval between BMS read cycles")
	flags.Duration("publish-interval", DefaultPublishInterval, "Interval between publish cycles")
	flags.String("node-name", DefaultNodeName, "Node name, used as the topic prefix")
	flags.String("frame-id", DefaultFrameID, "Frame identifier stamped on published records")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("mqtt-broker", bus.DefaultBroker, "MQTT broker URL")
	flags.String("mqtt-client-id", bus.DefaultClientID, "MQTT client identifier")
	flags.Int("mqtt-qos", 0, "MQTT quality of service (0, 1 or 2)")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-listen", metrics.DefaultConfig().ListenAddress, "Metrics listen address")

	return flags
}

func loadDotEnv(paths []string) error {
	errFactory := errors.New()

	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	if err := godotenv.Load(defaultDotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func readConfigFile(v *viper.Viper, path string, searchPaths []string) error {
	errFactory := errors.New()

	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.ReadInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"read_interval", c.ReadInterval})
	}
	if c.PublishInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"publish_interval", c.PublishInterval})
	}

	if c.BMSAddress < 0 || c.BMSAddress > maxBMSAddress {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"bms_address", c.BMSAddress})
	}
	if c.RequestRetries < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"request_retries", c.RequestRetries})
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"mqtt.qos", c.MQTT.QoS})
	}

	if err := c.BusConfig().Validate(); err != nil {
		return err
	}

	return c.MetricsConfig().Validate()
}

// BusConfig returns the publisher settings derived from the configuration
func (c *Config) BusConfig() bus.Config {
	cfg := bus.DefaultConfig(c.NodeName)
	cfg.Broker = c.MQTT.Broker
	cfg.ClientID = c.MQTT.ClientID
	cfg.Username = c.MQTT.Username
	cfg.Password = c.MQTT.Password
	cfg.QoS = byte(c.MQTT.QoS)
	cfg.Retain = c.MQTT.Retain
	cfg.QueueDepth = c.MQTT.QueueDepth

	return cfg
}

// MetricsConfig returns the metrics service settings
func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:       c.Metrics.Enabled,
		ListenAddress: c.Metrics.ListenAddress,
	}
}
