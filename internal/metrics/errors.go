package metrics

import "codeberg.org/mutker/dalybms-bridge/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig        = errors.ErrInvalidConfig
	ErrInvalidListenAddress = errors.ErrorCode("metrics_invalid_listen_address")

	// Registration Errors
	ErrRegisterFailed = errors.ErrorCode("metrics_register_failed")

	// Server Errors
	ErrListenFailed    = errors.ErrorCode("metrics_listen_failed")
	ErrServiceShutdown = errors.ErrShutdownFailed
)
