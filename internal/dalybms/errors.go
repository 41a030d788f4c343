package dalybms

import (
	"errors"

	apperrors "codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	// Connection Errors
	ErrOpenPortFailed = apperrors.ErrorCode("dalybms_open_port_failed")
	ErrNotConnected   = apperrors.ErrorCode("dalybms_not_connected")
	ErrClosePort      = apperrors.ErrorCode("dalybms_close_port_failed")

	// Request Errors
	ErrWriteFailed   = apperrors.ErrorCode("dalybms_write_failed")
	ErrReadFailed    = apperrors.ErrorCode("dalybms_read_failed")
	ErrRequestFailed = apperrors.ErrorCode("dalybms_request_failed")
	ErrNoResponse    = apperrors.ErrorCode("dalybms_no_response")

	// Decoding Errors
	ErrDecodeFailed = apperrors.ErrorCode("dalybms_decode_failed")
)

// ErrNoData is the no-data sentinel: the BMS sent no valid frame for a query.
// Query errors wrap it, so callers test with errors.Is.
var ErrNoData = errors.New("no data received from BMS")
