package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Catalog answers which version an alias currently points at.
type Catalog interface {
	Version(ctx context.Context, name, alias string) (string, error)
}

// Notifier is implemented by catalogs that can signal a possible change
// before the next poll tick. Every subscriber gets its own channel; cancel
// unsubscribes.
type Notifier interface {
	Subscribe() (changes <-chan struct{}, cancel func())
}

// AliasRef is a parsed alias reference.
type AliasRef struct {
	Name  string // catalog.schema.name
	Alias string
}

// ParseAliasRef accepts "ref://catalog.schema.name@alias" and
// "models:/catalog.schema.name@alias".
func ParseAliasRef(ref string) (AliasRef, error) {
	rest := ref
	switch {
	case strings.HasPrefix(ref, "ref://"):
		rest = strings.TrimPrefix(ref, "ref://")
	case strings.HasPrefix(ref, "models:/"):
		rest = strings.TrimPrefix(ref, "models:/")
	default:
		return AliasRef{}, errors.New("want ref://catalog.schema.name@alias")
	}
	name, alias, ok := strings.Cut(rest, "@")
	if !ok || alias == "" || strings.Contains(alias, "@") {
		return AliasRef{}, errors.New("missing @alias")
	}
	parts := strings.Split(name, ".")
	if len(parts) != 3 {
		return AliasRef{}, fmt.Errorf("model name %q is not catalog.schema.name", name)
	}
	for _, p := range parts {
		if p == "" {
			return AliasRef{}, fmt.Errorf("model name %q has an empty segment", name)
		}
	}
	return AliasRef{Name: name, Alias: alias}, nil
}

// VersionedURI is the resolved form of an alias reference.
func VersionedURI(name, version string) string {
	return "models:/" + name + "/" + version
}

// Alias resolves alias references against a Catalog.
type Alias struct {
	catalog Catalog
	log     zerolog.Logger
}

func NewAlias(c Catalog, log zerolog.Logger) *Alias { return &Alias{catalog: c, log: log} }

// Close releases the catalog when it holds resources (file watchers).
func (a *Alias) Close() error {
	if c, ok := a.catalog.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *Alias) resolve(ctx context.Context, ref string) (string, error) {
	ar, err := ParseAliasRef(ref)
	if err != nil {
		return "", &ResolutionError{Ref: ref, Err: err}
	}
	v, err := a.catalog.Version(ctx, ar.Name, ar.Alias)
	if err != nil {
		return "", &ResolutionError{Ref: ref, Err: err}
	}
	if v == "" {
		return "", &ResolutionError{Ref: ref, Err: errors.New("catalog returned an empty version")}
	}
	return VersionedURI(ar.Name, v), nil
}

func (a *Alias) ResolveInitial(ctx context.Context, ref string) (string, error) {
	return a.resolve(ctx, ref)
}

// Watch polls the catalog every interval, and early when the catalog signals
// a change. The first successful resolution always reaches onChange.
func (a *Alias) Watch(ctx context.Context, ref string, interval time.Duration, onChange OnChange) error {
	if _, err := ParseAliasRef(ref); err != nil {
		return &ResolutionError{Ref: ref, Err: err}
	}
	var wake <-chan struct{}
	if n, ok := a.catalog.(Notifier); ok {
		ch, unsubscribe := n.Subscribe()
		defer unsubscribe()
		wake = ch
	}
	w := &watchLoop{
		interval: interval,
		resolve:  func(ctx context.Context) (string, error) { return a.resolve(ctx, ref) },
		onChange: onChange,
		wake:     wake,
		log:      a.log.With().Str("ref", ref).Logger(),
	}
	w.run(ctx)
	return nil
}
