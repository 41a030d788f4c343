// Package dalybms talks to Daly battery-management systems over their UART
// or RS485 interface.
package dalybms

import (
	"sync"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
)

const (
	// AddressRS485 is used for the UART and RS485/USB interfaces.
	AddressRS485 = 4
	// AddressBluetooth is used by the Bluetooth module.
	AddressBluetooth = 8

	defaultRetries    = 3
	defaultRetryDelay = 200 * time.Millisecond
)

// Driver is a handle to one BMS. It is not reconnected automatically.
type Driver struct {
	mu         sync.Mutex
	port       Port
	openPort   PortOpener
	address    int
	retries    int
	retryDelay time.Duration
	status     *Status // cached by GetStatus
	log        logger.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithAddress sets the BMS address nibble (AddressRS485 or AddressBluetooth).
func WithAddress(address int) Option {
	return func(d *Driver) {
		if address != 0 {
			d.address = address
		}
	}
}

// WithRetries sets how many times each request is attempted.
func WithRetries(retries int) Option {
	return func(d *Driver) {
		if retries > 0 {
			d.retries = retries
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Driver) {
		d.retryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// WithPortOpener replaces the serial port opener.
func WithPortOpener(open PortOpener) Option {
	return func(d *Driver) {
		d.openPort = open
	}
}

func New(opts ...Option) *Driver {
	d := &Driver{
		openPort:   OpenSerial,
		address:    AddressRS485,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Connect opens the serial device, e.g. "/dev/ttyUSB0", and fetches the
// status group once so the multi-frame queries know the cell and sensor
// counts.
func (d *Driver) Connect(path string) error {
	errFactory := errors.New()

	port, err := d.openPort(path)
	if err != nil {
		return errFactory.Wrap(ErrOpenPortFailed, err).WithData(path)
	}

	d.mu.Lock()
	d.port = port
	d.status = nil
	d.mu.Unlock()

	d.log.Info().Str("port", path).Int("address", d.address).Msg("Connected to BMS")

	if _, err := d.GetStatus(); err != nil {
		d.log.Debug().Err(err).Msg("Initial status query failed")
	}

	return nil
}

// Disconnect closes the serial device.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil
	}

	err := d.port.Close()
	d.port = nil
	d.status = nil
	if err != nil {
		return errors.New().Wrap(ErrClosePort, err)
	}

	return nil
}
