// Command stub-api serves a local fake of the addy.io and Have I Been Pwned
// APIs so a run can be rehearsed without real credentials.
//
// Point aliasguard at it with ADDY_BASE_URL and HIBP_BASE_URL set to
// http://localhost:$PORT and the tokens below.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/aliasguard/internal/pkg/logger"
	"github.com/ignite/aliasguard/internal/stubapi"
)

func main() {
	logger.Warn("STUB API for local testing only: all data is fabricated")

	opts := stubapi.Options{
		AddyToken:      envOrDefault("STUB_ADDY_TOKEN", "stub-addy-token"),
		HIBPKey:        envOrDefault("STUB_HIBP_KEY", "stub-hibp-key"),
		LookupInterval: time.Duration(envInt("STUB_LOOKUP_INTERVAL_MS", 1500)) * time.Millisecond,
	}
	if origins := os.Getenv("STUB_CORS_ORIGINS"); origins != "" {
		opts.AllowedOrigins = strings.Split(origins, ",")
	}

	stub := stubapi.New(opts)
	count := envInt("STUB_ALIASES", 12)
	stubapi.Seed(stub, count)

	port := envOrDefault("PORT", "8080")
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      stub.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Stub API listening",
			"port", port,
			"aliases", count,
			"lookup_interval", opts.LookupInterval.String(),
			"addy_token", opts.AddyToken,
			"hibp_key", opts.HIBPKey)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down stub API...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Stub API stopped", "deactivated", len(stub.Deactivated()), "lookups", stub.Lookups())
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
