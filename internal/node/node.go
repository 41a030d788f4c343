// Package node polls a BMS on one timer and publishes the last known battery
// record on another.
package node

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
	"codeberg.org/mutker/dalybms-bridge/internal/dalybms"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
)

const (
	DefaultReadInterval    = time.Second
	DefaultPublishInterval = time.Second
)

// DefaultSerialPort is used when no serial port is configured.
var DefaultSerialPort = defaultSerialPort(runtime.GOOS)

func defaultSerialPort(goos string) string {
	switch goos {
	case "windows":
		return "COM1"
	case "darwin":
		return "/dev/cu.usbserial"
	default:
		return "/dev/ttyS0"
	}
}

// Node owns the driver handle and the battery record. ReadCycle and
// PublishCycle may run concurrently; the record is replaced under a lock so
// a publish never sees a partly updated record.
type Node struct {
	driver    Driver
	publisher Publisher
	recorder  Recorder
	log       logger.Logger
	now       func() time.Time

	readInterval    time.Duration
	publishInterval time.Duration

	port      string
	connected bool

	mu     sync.RWMutex
	status battery.Status
}

// Option configures a Node.
type Option func(*Node)

func WithLogger(log logger.Logger) Option {
	return func(n *Node) {
		n.log = log
	}
}

func WithRecorder(r Recorder) Option {
	return func(n *Node) {
		if r != nil {
			n.recorder = r
		}
	}
}

// WithClock sets the clock used to stamp published records.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		n.now = now
	}
}

func WithFrameID(frameID string) Option {
	return func(n *Node) {
		n.status.Header.FrameID = frameID
	}
}

// WithIntervals sets the read and publish timer periods.
func WithIntervals(read, publish time.Duration) Option {
	return func(n *Node) {
		n.readInterval = read
		n.publishInterval = publish
	}
}

func New(driver Driver, publisher Publisher, opts ...Option) *Node {
	n := &Node{
		driver:          driver,
		publisher:       publisher,
		recorder:        noopRecorder{},
		log:             logger.Default(),
		now:             time.Now,
		readInterval:    DefaultReadInterval,
		publishInterval: DefaultPublishInterval,
		status:          battery.NewStatus(battery.DefaultFrameID),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.status.Header.FrameID == "" {
		n.status.Header.FrameID = battery.DefaultFrameID
	}

	return n
}

// Configure records the serial port to connect to. An empty port falls back
// to DefaultSerialPort. The path is not checked until Connect.
func (n *Node) Configure(serialPort string) {
	if serialPort == "" {
		n.log.Warn().Str("port", DefaultSerialPort).Msg("No serial port provided, using default")
		serialPort = DefaultSerialPort
	}
	n.port = serialPort
}

// SerialPort returns the configured serial port.
func (n *Node) SerialPort() string {
	return n.port
}

// Connect opens the driver on the configured port. It does not retry; a
// failure means the node cannot run.
func (n *Node) Connect() error {
	if n.port == "" {
		n.Configure("")
	}

	if err := n.driver.Connect(n.port); err != nil {
		return errors.New().Wrap(ErrConnectFailed, err).WithData(n.port)
	}
	n.connected = true

	return nil
}

// Close disconnects the driver.
func (n *Node) Close() error {
	if !n.connected {
		return nil
	}
	n.connected = false

	return n.driver.Disconnect()
}

// ReadCycle queries the five BMS groups and, only when all of them return
// data, overwrites every mapped field of the record at once. Otherwise the
// record is left untouched, a warning is logged and an error with code
// ErrReadSkipped is returned; the next tick is the retry.
func (n *Node) ReadCycle() error {
	soc := query("soc", n.driver.GetSOC, notNil[dalybms.SOC])
	if !soc.ok() {
		return n.skip(soc.skip())
	}
	mosfet := query("mosfet_status", n.driver.GetMosfetStatus, notNil[dalybms.MosfetStatus])
	if !mosfet.ok() {
		return n.skip(mosfet.skip())
	}
	cells := query("cell_voltages", n.driver.GetCellVoltages, notNilMap)
	if !cells.ok() {
		return n.skip(cells.skip())
	}
	temps := query("temperatures", n.driver.GetTemperatures, notNilMap)
	if !temps.ok() {
		return n.skip(temps.skip())
	}
	status := query("status", n.driver.GetStatus, notNil[dalybms.Status])
	if !status.ok() {
		return n.skip(status.skip())
	}

	present := status.value.NumberOfCells != 0
	powerSupplyStatus := battery.StatusFromMode(mosfet.value.Mode)
	cellVoltages := ordered(cells.value)
	cellTemperatures := ordered(temps.value)

	n.mu.Lock()
	n.status.Present = present
	n.status.Percentage = soc.value.SOCPercent
	n.status.Voltage = soc.value.TotalVoltage
	n.status.Current = soc.value.Current
	n.status.PowerSupplyStatus = powerSupplyStatus
	n.status.Charge = mosfet.value.CapacityAh
	n.status.CellVoltages = cellVoltages
	n.status.CellTemperatures = cellTemperatures
	n.mu.Unlock()

	n.recorder.ObserveRead(string(OutcomeOK))
	n.log.Debug().
		Bool("present", present).
		Float64("percentage", soc.value.SOCPercent).
		Float64("voltage", soc.value.TotalVoltage).
		Float64("current", soc.value.Current).
		Float64("charge", mosfet.value.CapacityAh).
		Str("power_supply_status", powerSupplyStatus.String()).
		Floats64("cell_voltages", cellVoltages).
		Floats64("cell_temperatures", cellTemperatures).
		Msg("Battery status updated")

	return nil
}

func (n *Node) skip(s skipped) error {
	n.recorder.ObserveRead(string(s.Outcome))
	n.log.Warn().
		Str("group", s.Group).
		Str("outcome", string(s.Outcome)).
		Err(s.err).
		Msg("Skipping current read cycle: driver failed to return data")

	return errors.New().Wrap(ErrReadSkipped, s.err).WithData(s)
}

// PublishCycle stamps the record with the current time and publishes a copy.
// It does not depend on ReadCycle having run since the last publish: the last
// known record, or the default one, is always published.
func (n *Node) PublishCycle(ctx context.Context) error {
	n.mu.Lock()
	n.status.Header.Stamp = n.now()
	snapshot := n.status.Clone()
	n.mu.Unlock()

	err := n.publisher.Publish(ctx, snapshot)
	n.recorder.ObservePublish(err)
	if err != nil {
		n.log.Warn().Err(err).Msg("Failed to publish battery status")
		return errors.New().Wrap(ErrPublishFailed, err)
	}

	return nil
}

// Snapshot returns a copy of the current record.
func (n *Node) Snapshot() battery.Status {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.status.Clone()
}

// Run drives ReadCycle and PublishCycle from two independent tickers until
// ctx is cancelled. A tick runs to completion before its ticker is read again.
func (n *Node) Run(ctx context.Context) error {
	errFactory := errors.New()

	if !n.connected {
		return errFactory.New(ErrNotConnected)
	}
	if n.readInterval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, n.readInterval)
	}
	if n.publishInterval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, n.publishInterval)
	}

	n.log.Info().
		Str("port", n.port).
		Dur("read_interval", n.readInterval).
		Dur("publish_interval", n.publishInterval).
		Msg("Node running")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tick(ctx, n.readInterval, func() {
			_ = n.ReadCycle()
		})
	}()
	go func() {
		defer wg.Done()
		tick(ctx, n.publishInterval, func() {
			_ = n.PublishCycle(ctx)
		})
	}()
	wg.Wait()

	return nil
}

func tick(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// ordered returns the values of m in ascending key order.
func ordered(m map[int]float64) []float64 {
	values := make([]float64, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		values = append(values, m[k])
	}
	return values
}
