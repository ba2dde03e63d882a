package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"modelgate/internal/adapters/builtin"
	"modelgate/internal/config"
	"modelgate/internal/httpapi"
	"modelgate/internal/manager"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
	"modelgate/internal/transport"
)

func runServe(ctx context.Context, opts *Options) error {
	cfg, err := loadConfig(opts, os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	group, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := group.LoadAll(ctx); err != nil {
		_ = group.Finalize(context.Background())
		return fmt.Errorf("load runtimes: %w", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	mux := httpapi.NewMux(group, httpapi.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORSOrigins:  splitCSV(opts.CORSOrigins),
		BaseContext:  baseCtx,
		Logger:       log.With().Str("component", "http").Logger(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	gs := transport.NewGRPCServer(transport.NewServer(group, log), log.With().Str("component", "grpc").Logger())
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		_ = group.Finalize(context.Background())
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Strs("models", group.Names()).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var serveErr error
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("draining")
		select {
		case <-group.StartDrain():
		case <-sigs:
			log.Warn().Msg("second signal, skipping drain grace")
		}
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failed")
		group.StartDrain()
	}
	cancelBase()

	shutdown := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	sctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	stopGRPC(gs, shutdown)
	if err := group.Finalize(sctx); err != nil {
		log.Warn().Err(err).Msg("finalize")
	}
	log.Info().Msg("stopped")
	return serveErr
}

// buildRuntime opens the memory store, registers adapters and creates one
// runtime per configured model. Nothing is loaded yet.
func buildRuntime(ctx context.Context, cfg config.Config, log zerolog.Logger) (*manager.Group, error) {
	mcfg := cfg.MemoryOptions()
	mcfg.Logger = log.With().Str("component", "memory").Logger()
	store, err := memory.Open(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		return nil, err
	}
	reg.Freeze()

	group := manager.NewGroup(log)
	if store != nil {
		group.AtFinalize(store.Close)
		if p, ok := store.(memory.Pruner); ok {
			ps, err := memory.NewPruneScheduler(p, mcfg.PruneSchedule, mcfg.Retention, mcfg.Logger)
			if err != nil {
				_ = store.Close()
				return nil, err
			}
			ps.Start()
			group.AtFinalize(func() error { ps.Stop(); return nil })
		}
	}

	runtimes, closeCatalog, err := cfg.Runtimes(reg, store, manager.NewEventLog(log.With().Str("component", "events").Logger(), 0), log)
	if err != nil {
		_ = group.Finalize(ctx)
		return nil, err
	}
	group.AtFinalize(closeCatalog)
	for _, rc := range runtimes {
		if err := group.Add(manager.New(rc)); err != nil {
			_ = group.Finalize(ctx)
			return nil, err
		}
	}
	return group, nil
}

func stopGRPC(gs *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		gs.Stop()
	}
}
