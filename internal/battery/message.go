package battery

import (
	"encoding/json"
	"math"
)

// Stamp is a wire timestamp split into seconds and nanoseconds.
type Stamp struct {
	Sec     int64  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// MessageHeader is the wire header.
type MessageHeader struct {
	Stamp   Stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Message is the standard battery-state wire shape. Quantities the BMS does
// not measure (pack temperature, capacity) are encoded as null.
type Message struct {
	Header                MessageHeader `json:"header"`
	Voltage               float64       `json:"voltage"`
	Temperature           *float64      `json:"temperature"`
	Current               float64       `json:"current"`
	Charge                float64       `json:"charge"`
	Capacity              *float64      `json:"capacity"`
	DesignCapacity        *float64      `json:"design_capacity"`
	Percentage            float64       `json:"percentage"`
	PowerSupplyStatus     uint8         `json:"power_supply_status"`
	PowerSupplyHealth     uint8         `json:"power_supply_health"`
	PowerSupplyTechnology uint8         `json:"power_supply_technology"`
	Present               bool          `json:"present"`
	CellVoltage           []float64     `json:"cell_voltage"`
	CellTemperature       []float64     `json:"cell_temperature"`
	Location              string        `json:"location"`
	SerialNumber          string        `json:"serial_number"`
}

// Message maps s onto the wire shape.
func (s Status) Message() Message {
	var stamp Stamp
	if !s.Header.Stamp.IsZero() {
		stamp = Stamp{
			Sec:     s.Header.Stamp.Unix(),
			Nanosec: uint32(s.Header.Stamp.Nanosecond()),
		}
	}

	c := s.Clone()

	return Message{
		Header:                MessageHeader{Stamp: stamp, FrameID: s.Header.FrameID},
		Voltage:               finite(s.Voltage),
		Current:               finite(s.Current),
		Charge:                finite(s.Charge),
		Percentage:            finite(s.Percentage),
		PowerSupplyStatus:     uint8(s.PowerSupplyStatus),
		PowerSupplyHealth:     uint8(s.PowerSupplyHealth),
		PowerSupplyTechnology: uint8(s.PowerSupplyTechnology),
		Present:               s.Present,
		CellVoltage:           c.CellVoltages,
		CellTemperature:       c.CellTemperatures,
	}
}

// MarshalJSON encodes s in its wire shape.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Message())
}

// finite replaces NaN and infinities, which JSON cannot carry, with zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
