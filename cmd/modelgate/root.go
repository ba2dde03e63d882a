package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Options carries the persistent flags.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Backend     string
	CORSOrigins string
}

// Indirection layer to allow stubbing in tests
var (
	fnServe    = runServe
	fnGateway  = runGateway
	fnValidate = runValidate
)

func buildRootCmd(opts *Options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "modelgate",
		Short:         "Model serving runtime and streaming gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", envStr("MODELGATE_CONFIG", "modelgate.yaml"), "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level: debug|info|warn|error")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load every configured model and serve HTTP + gRPC",
		Example: "  modelgate serve -c modelgate.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnServe(cmd.Context(), opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.CORSOrigins, "cors-origins", "", "Comma-separated origins allowed to call the HTTP API (enables CORS)")

	gatewayCmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Serve SSE streams backed by a runtime over gRPC",
		Example: "  modelgate gateway -c modelgate.yaml --backend runtime:9090",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnGateway(cmd.Context(), opts)
		},
	}
	gatewayCmd.Flags().StringVar(&opts.Backend, "backend", "", "gRPC address of the runtime (overrides gateway.backend)")
	gatewayCmd.Flags().StringVar(&opts.CORSOrigins, "cors-origins", "", "Comma-separated origins allowed to open streams (overrides gateway.cors_origins)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and print per-model results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnValidate(cmd.OutOrStdout(), opts)
		},
	}

	root.AddCommand(serveCmd, gatewayCmd, validateCmd)
	return root
}

// MainWithArgs runs the CLI and returns the process exit code.
func MainWithArgs(args []string, stdout, stderr io.Writer) int {
	opts := &Options{}
	root := buildRootCmd(opts, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func Main(args []string) int { return MainWithArgs(args, os.Stdout, os.Stderr) }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
