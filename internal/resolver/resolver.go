// Package resolver turns a logical model reference into a loadable URI and
// watches it for changes.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OnChange is called by Watch when the resolved URI changes.
type OnChange func(ctx context.Context, uri string) error

// Resolver is implemented by every resolver variant.
//
// Watch runs until ctx is cancelled. Resolution failures are logged and
// retried on the next tick; an error from onChange does not stop the watch.
// Variants with nothing to watch return immediately.
type Resolver interface {
	ResolveInitial(ctx context.Context, ref string) (string, error)
	Watch(ctx context.Context, ref string, interval time.Duration, onChange OnChange) error
}

// ResolutionError reports a malformed or unresolvable reference.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string { return fmt.Sprintf("resolve %q: %v", e.Ref, e.Err) }
func (e *ResolutionError) Unwrap() error { return e.Err }

// IsResolutionError reports whether err is or wraps a *ResolutionError.
func IsResolutionError(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e)
}

// Options configures the variants built by New.
type Options struct {
	CatalogPath  string
	CatalogURL   string
	CatalogToken string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// New builds a resolver variant by kind name.
func New(kind string, opts Options) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "static", "static_uri":
		return Static{}, nil
	case "alias", "uc_alias":
		var cat Catalog
		switch {
		case opts.CatalogPath != "":
			fc, err := NewFileCatalog(opts.CatalogPath, opts.Logger)
			if err != nil {
				return nil, err
			}
			cat = fc
		case opts.CatalogURL != "":
			cat = NewHTTPCatalog(opts.CatalogURL, opts.CatalogToken, opts.HTTPClient)
		default:
			return nil, fmt.Errorf("alias resolver needs catalog.path or catalog.url")
		}
		return NewAlias(cat, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q (known: static, static_uri, alias, uc_alias)", kind)
	}
}

// Kinds lists the names New accepts.
func Kinds() []string { return []string{"alias", "static", "static_uri", "uc_alias"} }

// Static passes references through unchanged and never watches.
type Static struct{}

func (Static) ResolveInitial(_ context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", &ResolutionError{Ref: ref, Err: errors.New("empty reference")}
	}
	return ref, nil
}

func (Static) Watch(context.Context, string, time.Duration, OnChange) error { return nil }
