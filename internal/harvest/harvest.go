// Package harvest drives the per-layer pipeline: plan, fetch, normalize,
// assemble, fall back, tile.
package harvest

import "errors"

// State is a layer's position in the run's state machine:
// PENDING -> FETCHING -> {ASSEMBLED | EMPTY} -> (FALLBACK_SUBSTITUTED)? -> DONE.
type State string

const (
	StatePending   State = "PENDING"
	StateFetching  State = "FETCHING"
	StateAssembled State = "ASSEMBLED"
	StateEmpty     State = "EMPTY"
	StateFallback  State = "FALLBACK_SUBSTITUTED"
	StateDone      State = "DONE"
)

var (
	// ErrLayerEmpty marks a layer that produced zero features after
	// exhausting its plan; it triggers the fallback lookup.
	ErrLayerEmpty = errors.New("layer produced no features")
	// ErrNoUsableData is fatal: every layer failed and had no fallback.
	ErrNoUsableData = errors.New("no layer produced usable output")
)

// Summary is the per-layer outcome record of a run.
type Summary struct {
	Layer        string
	State        State
	Count        int
	Complete     bool
	FallbackUsed bool
	Tiled        bool
	Err          string
}
