package metrics

import (
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	defaultListenAddress = ":9105"
	metricsPath          = "/metrics"
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 5 * time.Second
)

type Config struct {
	Enabled       bool
	ListenAddress string
}

func DefaultConfig() Config {
	return Config{
		ListenAddress: defaultListenAddress,
		Enabled:       false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the address if metrics is enabled
	if c.Enabled && c.ListenAddress == "" {
		return errFactory.New(ErrInvalidListenAddress)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
