// Package battery holds the battery-state record published by the bridge and
// its mapping onto the standard battery-state wire shape.
package battery

import "time"

// DefaultFrameID is the frame identifier stamped on every published record.
const DefaultFrameID = "daly_bms"

// PowerSupplyStatus follows the standard battery-state numbering.
type PowerSupplyStatus uint8

const (
	StatusUnknown PowerSupplyStatus = iota
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

func (s PowerSupplyStatus) String() string {
	switch s {
	case StatusCharging:
		return "charging"
	case StatusDischarging:
		return "discharging"
	case StatusNotCharging:
		return "not_charging"
	case StatusFull:
		return "full"
	default:
		return "unknown"
	}
}

// Technology is the battery chemistry tag.
type Technology uint8

const (
	TechnologyUnknown Technology = iota
	TechnologyNIMH
	TechnologyLION
	TechnologyLIPO
	TechnologyLIFE
	TechnologyNICD
	TechnologyLIMN
)

// Health is the power supply health. Only HealthUnknown is ever produced.
type Health uint8

const (
	HealthUnknown Health = iota
	HealthGood
	HealthOverheat
	HealthDead
	HealthOvervoltage
	HealthUnspecFailure
	HealthCold
	HealthWatchdogTimerExpire
	HealthSafetyTimerExpire
)

// Header carries the publish time and frame of a record.
type Header struct {
	Stamp   time.Time
	FrameID string
}

// Status is the last known battery state.
type Status struct {
	Header                Header
	Present               bool
	Percentage            float64
	Voltage               float64
	Current               float64
	Charge                float64
	PowerSupplyStatus     PowerSupplyStatus
	PowerSupplyHealth     Health
	PowerSupplyTechnology Technology
	CellVoltages          []float64
	CellTemperatures      []float64
}

// NewStatus returns the record a node starts with: absent, unknown status,
// lithium-ion chemistry.
func NewStatus(frameID string) Status {
	if frameID == "" {
		frameID = DefaultFrameID
	}

	return Status{
		Header:                Header{FrameID: frameID},
		PowerSupplyStatus:     StatusUnknown,
		PowerSupplyHealth:     HealthUnknown,
		PowerSupplyTechnology: TechnologyLION,
		CellVoltages:          []float64{},
		CellTemperatures:      []float64{},
	}
}

// StatusFromMode maps a BMS mosfet mode to a PowerSupplyStatus.
// Unrecognized modes, including the empty string, map to StatusUnknown.
func StatusFromMode(mode string) PowerSupplyStatus {
	switch mode {
	case "discharging":
		return StatusDischarging
	case "charging":
		return StatusCharging
	case "stationary":
		return StatusNotCharging
	default:
		return StatusUnknown
	}
}

// Clone returns a deep copy of s.
func (s Status) Clone() Status {
	c := s
	c.CellVoltages = append([]float64(nil), s.CellVoltages...)
	c.CellTemperatures = append([]float64(nil), s.CellTemperatures...)
	if c.CellVoltages == nil {
		c.CellVoltages = []float64{}
	}
	if c.CellTemperatures == nil {
		c.CellTemperatures = []float64{}
	}

	return c
}
