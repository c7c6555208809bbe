package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// ShutdownHook runs after a termination signal but before the HTTP server
// drains. A failing hook is logged, shutdown continues regardless.
type ShutdownHook func(ctx context.Context) error

// TimeoutConfig holds the server and shutdown related timeouts.
type TimeoutConfig struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
	Hook       time.Duration
}

// DefaultTimeouts suit an API that may hold long facet computations.
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		ReadHeader: 5 * time.Second,
		Read:       30 * time.Second,
		Write:      60 * time.Second,
		Idle:       120 * time.Second,
		Shutdown:   15 * time.Second,
		Hook:       5 * time.Second,
	}
}

// LoadTimeoutConfig overrides defaults from the environment, each variable
// is an integer number of seconds. Unparsable or non-positive values keep
// the default.
func LoadTimeoutConfig(defaults TimeoutConfig) TimeoutConfig {
	apply := func(curr *time.Duration, env string) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*curr = time.Duration(n) * time.Second
			}
		}
	}
	apply(&defaults.ReadHeader, "READ_HEADER_TIMEOUT")
	apply(&defaults.Read, "READ_TIMEOUT")
	apply(&defaults.Write, "WRITE_TIMEOUT")
	apply(&defaults.Idle, "IDLE_TIMEOUT")
	apply(&defaults.Shutdown, "SHUTDOWN_TIMEOUT")
	apply(&defaults.Hook, "HOOK_TIMEOUT")
	return defaults
}

// RunWithShutdown starts the server and blocks until SIGINT or SIGTERM.
// Hooks run in order with individual timeouts, then the server drains
// within the remaining shutdown deadline.
func RunWithShutdown(srv *http.Server, name string, cfg TimeoutConfig, hooks ...ShutdownHook) {
	srv.ReadHeaderTimeout = cfg.ReadHeader
	srv.ReadTimeout = cfg.Read
	srv.WriteTimeout = cfg.Write
	srv.IdleTimeout = cfg.Idle

	go func() {
		log.Printf("starting %s on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("%s listen error: %v", name, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutdown signal received for %s", name)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()

	for i, h := range hooks {
		if h == nil {
			continue
		}
		hCtx, hCancel := context.WithTimeout(ctx, cfg.Hook)
		if err := h(hCtx); err != nil {
			log.Printf("shutdown hook %d failed: %v", i, err)
		}
		hCancel()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		return
	}
	log.Printf("%s shutdown complete", name)
}
