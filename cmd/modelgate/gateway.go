package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelgate/internal/gateway"
	"modelgate/internal/transport"
)

func runGateway(ctx context.Context, opts *Options) error {
	cfg, err := loadConfig(opts, os.Getenv)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	backend := cfg.Gateway.Backend
	if opts.Backend != "" {
		backend = opts.Backend
	}
	origins := cfg.Gateway.CORSOrigins
	if o := splitCSV(opts.CORSOrigins); len(o) > 0 {
		origins = o
	}

	client, err := transport.Dial(backend)
	if err != nil {
		return err
	}
	defer client.Close()

	bridge := gateway.NewBridge(client, gateway.Config{
		Heartbeat: time.Duration(cfg.Gateway.HeartbeatSeconds) * time.Second,
		ReadWait:  time.Duration(cfg.Gateway.ReadWaitMS) * time.Millisecond,
		Logger:    log.With().Str("component", "gateway").Logger(),
	})
	srv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           gateway.NewMux(bridge, origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Gateway.Addr).Str("backend", backend).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		// open SSE streams do not end on their own
		_ = srv.Close()
	}
	return nil
}
