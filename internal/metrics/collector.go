package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector over the node's battery record
type Collector struct {
	source SnapshotSource

	voltage           *prometheus.Desc
	current           *prometheus.Desc
	charge            *prometheus.Desc
	stateOfCharge     *prometheus.Desc
	present           *prometheus.Desc
	powerSupplyStatus *prometheus.Desc
	cellVoltage       *prometheus.Desc
	cellTemperature   *prometheus.Desc
	lastPublish       *prometheus.Desc
}

// NewCollector creates a collector reading from source on every scrape
func NewCollector(source SnapshotSource) *Collector {
	return &Collector{
		source: source,
		voltage: prometheus.NewDesc(
			"dalybms_voltage_volts",
			"Pack total voltage in volts",
			[]string{"frame_id"},
			nil,
		),
		current: prometheus.NewDesc(
			"dalybms_current_amperes",
			"Pack current in amperes, sign as reported by the BMS",
			[]string{"frame_id"},
			nil,
		),
		charge: prometheus.NewDesc(
			"dalybms_charge_ampere_hours",
			"Remaining capacity in ampere-hours",
			[]string{"frame_id"},
			nil,
		),
		stateOfCharge: prometheus.NewDesc(
			"dalybms_state_of_charge",
			"State of charge as reported by the BMS",
			[]string{"frame_id"},
			nil,
		),
		present: prometheus.NewDesc(
			"dalybms_present",
			"Whether the BMS reports any cells (1=yes, 0=no)",
			[]string{"frame_id"},
			nil,
		),
		powerSupplyStatus: prometheus.NewDesc(
			"dalybms_power_supply_status",
			"Power supply status (0=unknown, 1=charging, 2=discharging, 3=not charging, 4=full)",
			[]string{"frame_id"},
			nil,
		),
		cellVoltage: prometheus.NewDesc(
			"dalybms_cell_voltage_volts",
			"Cell voltage in volts",
			[]string{"frame_id", "cell"},
			nil,
		),
		cellTemperature: prometheus.NewDesc(
			"dalybms_cell_temperature_celsius",
			"Temperature probe reading in degrees Celsius",
			[]string{"frame_id", "sensor"},
			nil,
		),
		lastPublish: prometheus.NewDesc(
			"dalybms_last_publish_timestamp_seconds",
			"Unix time of the last published battery record",
			[]string{"frame_id"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.voltage
	ch <- c.current
	ch <- c.charge
	ch <- c.stateOfCharge
	ch <- c.present
	ch <- c.powerSupplyStatus
	ch <- c.cellVoltage
	ch <- c.cellTemperature
	ch <- c.lastPublish
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Snapshot()
	frameID := s.Header.FrameID

	ch <- prometheus.MustNewConstMetric(c.voltage, prometheus.GaugeValue, s.Voltage, frameID)
	ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, s.Current, frameID)
	ch <- prometheus.MustNewConstMetric(c.charge, prometheus.GaugeValue, s.Charge, frameID)
	ch <- prometheus.MustNewConstMetric(c.stateOfCharge, prometheus.GaugeValue, s.Percentage, frameID)
	ch <- prometheus.MustNewConstMetric(c.present, prometheus.GaugeValue, boolToFloat(s.Present), frameID)
	ch <- prometheus.MustNewConstMetric(c.powerSupplyStatus, prometheus.GaugeValue, float64(s.PowerSupplyStatus), frameID)

	for i, v := range s.CellVoltages {
		ch <- prometheus.MustNewConstMetric(c.cellVoltage, prometheus.GaugeValue, v, frameID, strconv.Itoa(i+1))
	}
	for i, v := range s.CellTemperatures {
		ch <- prometheus.MustNewConstMetric(c.cellTemperature, prometheus.GaugeValue, v, frameID, strconv.Itoa(i+1))
	}

	if !s.Header.Stamp.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastPublish, prometheus.GaugeValue,
			float64(s.Header.Stamp.UnixNano())/1e9, frameID)
	}
}
