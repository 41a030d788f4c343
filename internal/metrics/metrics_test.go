package metrics

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	status battery.Status
}

func (s staticSource) Snapshot() battery.Status {
	return s.status.Clone()
}

func sampleStatus() battery.Status {
	s := battery.NewStatus("pack0")
	s.Header.Stamp = time.Unix(1700000000, 0)
	s.Present = true
	s.Percentage = 0.73
	s.Voltage = 52.3
	s.Current = -4.5
	s.Charge = 80
	s.PowerSupplyStatus = battery.StatusDischarging
	s.CellVoltages = []float64{3.31, 3.32, 3.30}
	s.CellTemperatures = []float64{25, 26}
	return s
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Enabled: false}.Validate())

	err := Config{Enabled: true}.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidListenAddress))
}

func TestNewServiceDisabled(t *testing.T) {
	svc, err := NewService(DefaultConfig(), staticSource{}, logger.New(io.Discard))
	require.NoError(t, err)
	assert.IsType(t, &noopService{}, svc)

	svc.ObserveRead("ok")
	svc.ObservePublish(nil)
	assert.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestNewServiceInvalidConfig(t *testing.T) {
	_, err := NewService(Config{Enabled: true}, staticSource{}, logger.New(io.Discard))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestCollector(t *testing.T) {
	c := NewCollector(staticSource{status: sampleStatus()})

	// 6 pack gauges + 3 cells + 2 sensors + last publish
	assert.Equal(t, 12, testutil.CollectAndCount(c))

	expected := `
# HELP dalybms_cell_voltage_volts Cell voltage in volts
# TYPE dalybms_cell_voltage_volts gauge
dalybms_cell_voltage_volts{cell="1",frame_id="pack0"} 3.31
dalybms_cell_voltage_volts{cell="2",frame_id="pack0"} 3.32
dalybms_cell_voltage_volts{cell="3",frame_id="pack0"} 3.3
# HELP dalybms_power_supply_status Power supply status (0=unknown, 1=charging, 2=discharging, 3=not charging, 4=full)
# TYPE dalybms_power_supply_status gauge
dalybms_power_supply_status{frame_id="pack0"} 2
# HELP dalybms_state_of_charge State of charge as reported by the BMS
# TYPE dalybms_state_of_charge gauge
dalybms_state_of_charge{frame_id="pack0"} 0.73
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"dalybms_cell_voltage_volts", "dalybms_power_supply_status", "dalybms_state_of_charge"))
}

func TestCollectorInitialRecord(t *testing.T) {
	c := NewCollector(staticSource{status: battery.NewStatus("")})

	// No cells, no sensors and never published
	assert.Equal(t, 6, testutil.CollectAndCount(c))

	expected := `
# HELP dalybms_present Whether the BMS reports any cells (1=yes, 0=no)
# TYPE dalybms_present gauge
dalybms_present{frame_id="daly_bms"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "dalybms_present"))
}

func TestServiceCounters(t *testing.T) {
	cfg := Config{Enabled: true, ListenAddress: "127.0.0.1:0"}
	svc, err := NewService(cfg, staticSource{status: sampleStatus()}, logger.New(io.Discard))
	require.NoError(t, err)

	s, ok := svc.(*service)
	require.True(t, ok)

	s.ObserveRead("ok")
	s.ObserveRead("ok")
	s.ObserveRead("no_data")
	s.ObservePublish(nil)
	s.ObservePublish(errors.New().New(errors.ErrOperationFailed))

	assert.InDelta(t, 2, testutil.ToFloat64(s.reads.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.reads.WithLabelValues("no_data")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(s.reads.WithLabelValues("fault")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.publishes.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.publishes.WithLabelValues("error")), 0)
}

func TestServiceHandler(t *testing.T) {
	cfg := Config{Enabled: true, ListenAddress: "127.0.0.1:0"}
	svc, err := NewService(cfg, staticSource{status: sampleStatus()}, logger.New(io.Discard))
	require.NoError(t, err)

	s := svc.(*service)
	s.ObserveRead("fault")

	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + metricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dalybms_voltage_volts{frame_id="pack0"} 52.3`)
	assert.Contains(t, string(body), `dalybms_read_cycles_total{outcome="fault"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServiceStartClose(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Enabled: true, ListenAddress: "127.0.0.1:0"}
	svc, err := NewService(cfg, staticSource{status: sampleStatus()}, logger.New(&buf))
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	assert.Contains(t, buf.String(), "Serving metrics")
	assert.NoError(t, svc.Close())
}

func TestServiceStartListenFailure(t *testing.T) {
	cfg := Config{Enabled: true, ListenAddress: "256.0.0.1:bogus"}
	svc, err := NewService(cfg, staticSource{}, logger.New(io.Discard))
	require.NoError(t, err)

	err = svc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrListenFailed))
	assert.NoError(t, svc.Close())
}
