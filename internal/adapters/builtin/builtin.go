// Package builtin registers every adapter shipped with modelgate.
package builtin

import (
	"modelgate/internal/adapters/anthropic"
	"modelgate/internal/adapters/echo"
	"modelgate/internal/adapters/llamacpp"
	"modelgate/internal/adapters/llamaserver"
	"modelgate/internal/adapters/openai"
	"modelgate/internal/adapters/retrieval"
	"modelgate/internal/registry"
)

// Register adds the built-in adapters to r. It fails on the first name that
// is already taken or when r is frozen.
func Register(r *registry.Registry) error {
	for _, e := range []struct {
		name string
		f    registry.Factory
	}{
		{echo.Name, echo.New},
		{retrieval.Name, retrieval.New},
		{llamaserver.Name, llamaserver.New},
		{llamacpp.Name, llamacpp.New},
		{openai.Name, openai.New},
		{anthropic.Name, anthropic.New},
	} {
		if err := r.Register(e.name, e.f); err != nil {
			return err
		}
	}
	return nil
}
