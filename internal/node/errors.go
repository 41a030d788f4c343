package node

import "codeberg.org/mutker/dalybms-bridge/internal/errors"

const (
	ErrConnectFailed   = errors.ErrorCode("node_connect_failed")
	ErrNotConnected    = errors.ErrorCode("node_not_connected")
	ErrReadSkipped     = errors.ErrorCode("node_read_skipped")
	ErrPublishFailed   = errors.ErrorCode("node_publish_failed")
	ErrInvalidInterval = errors.ErrInvalidInterval
)
