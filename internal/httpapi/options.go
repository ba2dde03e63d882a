package httpapi

import (
	"context"

	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Options configures the mux built by NewMux. The zero value is usable.
type Options struct {
	// MaxBodyBytes caps JSON request bodies (default 1 MiB).
	MaxBodyBytes int64
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// BaseContext is canceled at shutdown; in-flight inference calls observe
	// it alongside the request context.
	BaseContext context.Context
	Logger      zerolog.Logger
	// DefaultLogLevel applies when a request carries no override
	// (default: MODELGATE_HTTP_LOG, else info).
	DefaultLogLevel string
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	return o
}
