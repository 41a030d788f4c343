package dalybms

import (
	"bytes"
	"encoding/binary"
	"math"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	cellsPerFrame        = 3
	temperaturesPerFrame = 7
	bluetoothCellFrames  = 16
	bluetoothTempFrames  = 3

	currentOffset     = 30000
	temperatureOffset = 40
)

// Mosfet modes as reported by GetMosfetStatus
const (
	ModeStationary  = "stationary"
	ModeCharging    = "charging"
	ModeDischarging = "discharging"
)

var stateNames = [8]string{"DI1", "DI2", "DI3", "DI4", "DO1", "DO2", "DO3", "DO4"}

// SOC is the state-of-charge group.
type SOC struct {
	TotalVoltage float64 // V
	Current      float64 // A, negative while charging
	SOCPercent   float64 // 0-100
}

// MosfetStatus is the charge/discharge switch group.
type MosfetStatus struct {
	Mode              string
	ChargingMosfet    bool
	DischargingMosfet bool
	BMSCycles         int
	CapacityAh        float64 // remaining capacity
}

// Status is the general status group.
type Status struct {
	NumberOfCells              int
	NumberOfTemperatureSensors int
	IsChargerRunning           bool
	IsLoadRunning              bool
	States                     map[string]bool
	CycleCount                 int
}

// GetSOC reads total voltage, current and state of charge.
func (d *Driver) GetSOC() (*SOC, error) {
	data, err := d.single(cmdSOC)
	if err != nil {
		return nil, err
	}

	var raw struct {
		TotalVoltage uint16
		Acquisition  uint16
		Current      uint16
		SOC          uint16
	}
	if err := decode(data, &raw); err != nil {
		return nil, err
	}

	return &SOC{
		TotalVoltage: float64(raw.TotalVoltage) / 10,
		Current:      float64(int(raw.Current)-currentOffset) / 10,
		SOCPercent:   float64(raw.SOC) / 10,
	}, nil
}

// GetMosfetStatus reads the charge mode, mosfet states and remaining capacity.
func (d *Driver) GetMosfetStatus() (*MosfetStatus, error) {
	data, err := d.single(cmdMosfetStatus)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Mode              int8
		ChargingMosfet    bool
		DischargingMosfet bool
		BMSCycles         uint8
		CapacityMilliAh   int32
	}
	if err := decode(data, &raw); err != nil {
		return nil, err
	}

	mode := ModeDischarging
	switch raw.Mode {
	case 0:
		mode = ModeStationary
	case 1:
		mode = ModeCharging
	}

	return &MosfetStatus{
		Mode:              mode,
		ChargingMosfet:    raw.ChargingMosfet,
		DischargingMosfet: raw.DischargingMosfet,
		BMSCycles:         int(raw.BMSCycles),
		CapacityAh:        float64(raw.CapacityMilliAh) / 1000,
	}, nil
}

// GetStatus reads the cell and sensor counts, I/O states and cycle count.
// The result is cached for GetCellVoltages and GetTemperatures.
func (d *Driver) GetStatus() (*Status, error) {
	data, err := d.single(cmdStatus)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Cells              int8
		TemperatureSensors int8
		ChargerRunning     bool
		LoadRunning        bool
		StateBits          uint8
		CycleCount         int16
		_                  byte
	}
	if err := decode(data, &raw); err != nil {
		return nil, err
	}

	states := make(map[string]bool, len(stateNames))
	for bit, name := range stateNames {
		states[name] = raw.StateBits>>bit&1 == 1
	}

	status := &Status{
		NumberOfCells:              int(raw.Cells),
		NumberOfTemperatureSensors: int(raw.TemperatureSensors),
		IsChargerRunning:           raw.ChargerRunning,
		IsLoadRunning:              raw.LoadRunning,
		States:                     states,
		CycleCount:                 int(raw.CycleCount),
	}

	d.mu.Lock()
	d.status = status
	d.mu.Unlock()

	return status, nil
}

// GetCellVoltages reads every cell voltage in volts, keyed by 1-based cell
// index.
func (d *Driver) GetCellVoltages() (map[int]float64, error) {
	status, err := d.cachedStatus()
	if err != nil {
		return nil, err
	}

	return d.multi(cmdCellVoltages, status.NumberOfCells, cellsPerFrame, bluetoothCellFrames, 2,
		func(b []byte) float64 {
			return float64(binary.BigEndian.Uint16(b)) / 1000
		})
}

// GetTemperatures reads every temperature probe in degrees Celsius, keyed by
// 1-based probe index.
func (d *Driver) GetTemperatures() (map[int]float64, error) {
	status, err := d.cachedStatus()
	if err != nil {
		return nil, err
	}

	return d.multi(cmdTemperatures, status.NumberOfTemperatureSensors, temperaturesPerFrame, bluetoothTempFrames, 1,
		func(b []byte) float64 {
			return float64(b[0]) - temperatureOffset
		})
}

func (d *Driver) cachedStatus() (*Status, error) {
	d.mu.Lock()
	status := d.status
	d.mu.Unlock()

	if status != nil {
		return status, nil
	}

	return d.GetStatus()
}

func (d *Driver) single(cmd byte) ([]byte, error) {
	frames, err := d.request(cmd, nil, 1)
	if err != nil {
		return nil, err
	}

	return frames[0], nil
}

// multi reads a multi-frame group. Each frame carries its 1-based sequence
// number in the first byte followed by perFrame values of width bytes.
func (d *Driver) multi(
	cmd byte,
	count, perFrame, bluetoothFrames, width int,
	parse func([]byte) float64,
) (map[int]float64, error) {
	values := make(map[int]float64, count)
	if count <= 0 {
		return values, nil
	}

	maxFrames := int(math.Ceil(float64(count) / float64(perFrame)))
	if d.address == AddressBluetooth {
		maxFrames = bluetoothFrames
	}

	frames, err := d.request(cmd, nil, maxFrames)
	if err != nil {
		return nil, err
	}

	for i, frame := range frames {
		if seq := int(frame[0]); seq != i+1 {
			d.log.Debug().Int("expected", i+1).Int("received", seq).Msg("Out of order frame")
		}
		for off := 1; off+width <= len(frame) && len(values) < count; off += width {
			if len(values) >= (i+1)*perFrame {
				break
			}
			values[len(values)+1] = parse(frame[off : off+width])
		}
		if len(values) == count {
			break
		}
	}

	return values, nil
}

func decode(data []byte, v any) error {
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, v); err != nil {
		return errors.New().Wrap(ErrDecodeFailed, err)
	}
	return nil
}
