package node

import (
	"context"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
	"codeberg.org/mutker/dalybms-bridge/internal/dalybms"
)

// Driver is the BMS handle the node reads from. *dalybms.Driver satisfies it.
// Query methods return dalybms.ErrNoData (possibly wrapped) when the BMS had
// no reading; any other error is a fault.
type Driver interface {
	Connect(path string) error
	Disconnect() error
	GetSOC() (*dalybms.SOC, error)
	GetMosfetStatus() (*dalybms.MosfetStatus, error)
	GetCellVoltages() (map[int]float64, error)
	GetTemperatures() (map[int]float64, error)
	GetStatus() (*dalybms.Status, error)
}

// Publisher emits battery records on the output channel.
type Publisher interface {
	Publish(ctx context.Context, status battery.Status) error
}

// Recorder observes cycle outcomes.
type Recorder interface {
	ObserveRead(outcome string)
	ObservePublish(err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRead(string)   {}
func (noopRecorder) ObservePublish(error) {}
