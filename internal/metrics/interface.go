package metrics

import (
	"context"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
)

// Service records cycle outcomes and serves them with the battery gauges
type Service interface {
	ObserveRead(outcome string)
	ObservePublish(err error)
	Start(ctx context.Context) error
	Close() error
}

// SnapshotSource provides the current battery record
type SnapshotSource interface {
	Snapshot() battery.Status
}

// SnapshotFunc adapts a function to SnapshotSource
type SnapshotFunc func() battery.Status

func (f SnapshotFunc) Snapshot() battery.Status {
	return f()
}
