package engine

import (
	"context"
	"sort"
)

// RunFunc executes a single-shot call.
type RunFunc func(ctx context.Context, call Call) (string, error)

// StreamFunc executes a streaming call.
type StreamFunc func(ctx context.Context, call Call) (Stream, error)

type route struct {
	run    RunFunc
	stream StreamFunc
}

// Dispatch is a mode-to-handler table built once when an adapter is
// constructed. Adapters embed it to get Modes, Run and Stream.
type Dispatch struct {
	routes map[Mode]route
}

// NewDispatch returns an empty table.
func NewDispatch() *Dispatch { return &Dispatch{routes: map[Mode]route{}} }

// Handle registers run (required) and stream (optional) for mode. Without a
// stream function the mode streams the result of run as a single token.
func (d *Dispatch) Handle(mode Mode, run RunFunc, stream StreamFunc) *Dispatch {
	d.routes[mode] = route{run: run, stream: stream}
	return d
}

// Modes returns the declared modes in a stable order.
func (d *Dispatch) Modes() []Mode {
	out := make([]Mode, 0, len(d.routes))
	for m := range d.routes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Dispatch) lookup(m Mode) (route, error) {
	r, ok := d.routes[m]
	if !ok {
		return route{}, &UnsupportedModeError{Mode: m, Supported: d.Modes()}
	}
	return r, nil
}

// Run dispatches call to its mode's run function. Backend errors come back as
// *ExecutionError.
func (d *Dispatch) Run(ctx context.Context, call Call) (string, error) {
	r, err := d.lookup(call.Mode)
	if err != nil {
		return "", err
	}
	out, err := r.run(ctx, call)
	if err != nil {
		return "", wrapExec(call.Mode, err)
	}
	return out, nil
}

// Stream dispatches call to its mode's stream function, or degrades to a
// single-token stream of Run's result.
func (d *Dispatch) Stream(ctx context.Context, call Call) (Stream, error) {
	r, err := d.lookup(call.Mode)
	if err != nil {
		return nil, err
	}
	if r.stream == nil {
		out, err := r.run(ctx, call)
		if err != nil {
			return nil, wrapExec(call.Mode, err)
		}
		return Single(out), nil
	}
	s, err := r.stream(ctx, call)
	if err != nil {
		return nil, wrapExec(call.Mode, err)
	}
	return s, nil
}

func wrapExec(m Mode, err error) error {
	if IsExecutionError(err) || IsUnsupportedMode(err) {
		return err
	}
	return &ExecutionError{Mode: m, Err: err}
}
