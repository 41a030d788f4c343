package node

import (
	"codeberg.org/mutker/dalybms-bridge/internal/dalybms"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

// Outcome classifies a single driver query.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeNoData Outcome = "no_data"
	OutcomeFault  Outcome = "fault"
)

// result is the outcome of one driver query. A nil value returned without an
// error counts as no data.
type result[T any] struct {
	group   string
	value   T
	outcome Outcome
	err     error
}

func query[T any](group string, fn func() (T, error), present func(T) bool) result[T] {
	value, err := fn()
	switch {
	case err == nil && present(value):
		return result[T]{group: group, value: value, outcome: OutcomeOK}
	case err == nil:
		return result[T]{group: group, outcome: OutcomeNoData, err: dalybms.ErrNoData}
	case errors.Is(err, dalybms.ErrNoData):
		return result[T]{group: group, outcome: OutcomeNoData, err: err}
	default:
		return result[T]{group: group, outcome: OutcomeFault, err: err}
	}
}

func (r result[T]) ok() bool {
	return r.outcome == OutcomeOK
}

func (r result[T]) skip() skipped {
	return skipped{Group: r.group, Outcome: r.outcome, err: r.err}
}

// skipped describes why a read cycle was abandoned.
type skipped struct {
	Group   string
	Outcome Outcome
	err     error
}

func notNil[T any](v *T) bool {
	return v != nil
}

func notNilMap(m map[int]float64) bool {
	return m != nil
}

func (s skipped) String() string {
	return "group=" + s.Group + " outcome=" + string(s.Outcome)
}
