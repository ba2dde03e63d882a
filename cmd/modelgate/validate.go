package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"modelgate/internal/adapters/builtin"
	"modelgate/internal/registry"
)

// runValidate prints one line per model and fails if anything is wrong.
func runValidate(w io.Writer, opts *Options) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	cfg, err := loadConfig(opts, os.Getenv)
	if err != nil {
		return err
	}
	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		return err
	}

	cyan.Fprintf(w, "%s\n", opts.ConfigPath)
	failed := 0
	for i, m := range cfg.Models {
		err := m.Validate()
		if !reg.Has(m.Adapter) {
			err = errors.Join(err, fmt.Errorf("unknown adapter %q", m.Adapter))
		}
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("models[%d]", i)
		}
		if err != nil {
			failed++
			red.Fprintf(w, "  FAIL %s\n", name)
			fmt.Fprintf(w, "       %v\n", err)
			continue
		}
		green.Fprintf(w, "  ok   %s", name)
		fmt.Fprintf(w, " (%s, %s, %s)\n", m.Adapter, m.EngineType, m.ModelRef)
	}
	if err := cfg.Validate(); err != nil {
		if failed == 0 {
			failed++
		}
		red.Fprintf(w, "config errors:\n")
		fmt.Fprintf(w, "%v\n", err)
	}
	if failed > 0 {
		return fmt.Errorf("%s: %d problem(s)", opts.ConfigPath, failed)
	}
	green.Fprintf(w, "valid\n")
	return nil
}
