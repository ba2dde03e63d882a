package config

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"modelgate/internal/manager"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
	"modelgate/internal/resolver"
)

// Runtimes translates the models section into manager configs. Alias
// resolvers share one catalog; the returned close func releases it.
func (c Config) Runtimes(reg *registry.Registry, store memory.Store, pub manager.EventPublisher, log zerolog.Logger) ([]manager.Config, func() error, error) {
	var (
		once     sync.Once
		alias    resolver.Resolver
		aliasErr error
	)
	sharedAlias := func() (resolver.Resolver, error) {
		once.Do(func() {
			alias, aliasErr = resolver.New("alias", resolver.Options{
				CatalogPath:  c.Catalog.Path,
				CatalogURL:   c.Catalog.URL,
				CatalogToken: c.Catalog.Token,
				Logger:       log.With().Str("component", "catalog").Logger(),
			})
		})
		return alias, aliasErr
	}
	closeFn := func() error {
		if cl, ok := alias.(interface{ Close() error }); ok {
			return cl.Close()
		}
		return nil
	}

	out := make([]manager.Config, 0, len(c.Models))
	for _, m := range c.Models {
		var res resolver.Resolver
		if isAlias(m.Resolver) {
			r, err := sharedAlias()
			if err != nil {
				return nil, closeFn, err
			}
			res = r
		} else {
			r, err := resolver.New(m.Resolver, resolver.Options{})
			if err != nil {
				return nil, closeFn, err
			}
			res = r
		}
		out = append(out, manager.Config{
			Name:           m.Name,
			Adapter:        strings.ToLower(m.Adapter),
			ModelRef:       m.ModelRef,
			EngineType:     m.EngineType,
			TopK:           m.TopK,
			Timeout:        seconds(m.TimeoutSeconds),
			HotReload:      m.HotReloadEnabled(),
			ReloadInterval: seconds(m.HotReloadIntervalSeconds),
			MaxConcurrent:  m.MaxConcurrentStreams,
			DrainGrace:     seconds(m.DrainSeconds),
			StreamFormat:   m.StreamFormat,
			AdapterOptions: m.AdapterOptions,
			Registry:       reg,
			Resolver:       res,
			Memory:         store,
			Publisher:      pub,
			Logger:         log.With().Str("model", m.Name).Logger(),
		})
	}
	return out, closeFn, nil
}
