// Package llamacpp runs GGUF models in process through go-llama.cpp. Real
// inference needs the "llama" build tag and libllama next to the binary;
// default builds register a stub whose Load fails.
package llamacpp

import (
	"context"
	"errors"

	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

const Name = "llamacpp"

// Options are read from adapter_options.
type Options struct {
	ContextSize   int      `yaml:"context_size"`
	Threads       int      `yaml:"threads"`
	GPULayers     int      `yaml:"gpu_layers"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   float64  `yaml:"temperature"`
	TopP          float64  `yaml:"top_p"`
	TopK          int      `yaml:"top_k"`
	RepeatPenalty float64  `yaml:"repeat_penalty"`
	Seed          int      `yaml:"seed"`
	Stop          []string `yaml:"stop"`
	SystemPrompt  string   `yaml:"system_prompt"`
}

func defaultOptions() Options {
	return Options{ContextSize: 2048, Threads: 4, MaxTokens: 256}
}

// ErrNotBuilt is wrapped in the LoadError of binaries built without llama.
var ErrNotBuilt = errors.New("built without llama support")

func decode(s registry.Settings) (Options, error) {
	opts := defaultOptions()
	if err := s.DecodeOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	return a.ReloadFromURI(ctx, a.set.ResolvedURI)
}

var _ engine.Adapter = (*Adapter)(nil)
