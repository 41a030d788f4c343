package bus

import "codeberg.org/mutker/dalybms-bridge/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrInvalidConfig
	ErrConnectFailed  = errors.ErrorCode("bus_connect_failed")
	ErrEncodeFailed   = errors.ErrorCode("bus_encode_failed")
	ErrPublishFailed  = errors.ErrorCode("bus_publish_failed")
	ErrPublishTimeout = errors.ErrorCode("bus_publish_timeout")
	ErrClosed         = errors.ErrorCode("bus_closed")
)
