package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightsignal/opskit/pkg/api"
	"github.com/brightsignal/opskit/pkg/auth"
	"github.com/brightsignal/opskit/pkg/config"
	"github.com/brightsignal/opskit/pkg/observability"
)

// runServe starts the guarded internal HTTP surface.
func runServe(stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "brightsignal-opskit",
		ServiceVersion: "1.4.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: observability init: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.Close()

	if !cfg.InternalAPIEnabled || cfg.InternalKey == "" {
		logger.Warn("internal surface not configured; all toolkit routes will 404",
			"enabled", cfg.InternalAPIEnabled, "key_set", cfg.InternalKey != "")
	}

	svc := api.NewService(rt.registry, rt.exec, issuerOrNil(rt)).WithLogger(logger)
	guard := auth.NewGuard(cfg.InternalAPIEnabled, cfg.InternalKey)
	limiter := api.NewGlobalRateLimiter(10, 20)
	defer limiter.Close()

	handler := obs.Middleware(api.Routes(svc, guard, limiter))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("opskit serving", "port", cfg.Port,
			"surface_enabled", cfg.InternalAPIEnabled,
			"slots", rt.exec.Gate().Limit())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

// issuerOrNil avoids handing a typed-nil *Issuer to the interface field.
func issuerOrNil(rt *runtime) api.TokenIssuer {
	if rt.issuer == nil {
		return nil
	}
	return rt.issuer
}
