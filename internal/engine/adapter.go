// Package engine defines the capability contract every backend engine adapter
// satisfies, plus the small stream helpers the runtime and gateway share.
package engine

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects which capability of an adapter a call uses.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeQuery    Mode = "query"
	ModeRetrieve Mode = "retrieve"
)

// ParseMode maps a configured engine type onto a Mode. "retriever" is accepted
// as an alias of retrieve.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chat":
		return ModeChat, nil
	case "query":
		return ModeQuery, nil
	case "retrieve", "retriever":
		return ModeRetrieve, nil
	default:
		return "", fmt.Errorf("unknown engine type %q (want chat, query or retrieve)", s)
	}
}

// Call is one request against an adapter.
type Call struct {
	Mode      Mode
	Text      string
	SessionID string
	Params    map[string]any
}

// Adapter is the capability contract for a backend engine.
//
// Load and ReloadFromURI fail with *LoadError. A failed reload leaves the
// previously loaded backend in service. Run and Stream fail with
// *UnsupportedModeError for modes the adapter does not declare and with
// *ExecutionError when the backend fails. Close is best effort.
type Adapter interface {
	Modes() []Mode
	Load(ctx context.Context) error
	ReloadFromURI(ctx context.Context, uri string) error
	Run(ctx context.Context, call Call) (string, error)
	Stream(ctx context.Context, call Call) (Stream, error)
	Close() error
}

// Supports reports whether a declares mode m.
func Supports(a Adapter, m Mode) bool {
	for _, x := range a.Modes() {
		if x == m {
			return true
		}
	}
	return false
}
