package manager

import "time"

// State is the lifecycle state of a runtime:
// uninitialized -> loading -> ready -> draining -> finalized.
// A failed Load ends in failed.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateDraining      State = "draining"
	StateFinalized     State = "finalized"
	StateFailed        State = "failed"
)

// Snapshot is a read-only projection of the runtime state.
type Snapshot struct {
	Name            string
	State           State
	Adapter         string
	ModelRef        string
	ResolvedURI     string
	EngineType      string
	InFlight        int
	MaxConcurrent   int
	Draining        bool
	Reloads         int
	ReloadFailures  int
	LastReloadError string
	Err             string
	LoadedAt        time.Time
}
