package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/CallsForFriends/signalling-server/internal/auth"
	"github.com/CallsForFriends/signalling-server/internal/config"
	"github.com/CallsForFriends/signalling-server/internal/httpserver"
	"github.com/CallsForFriends/signalling-server/internal/metrics"
	"github.com/CallsForFriends/signalling-server/internal/ratelimit"
	"github.com/CallsForFriends/signalling-server/internal/signalling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting signalling-server",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"heartbeat_interval", cfg.HeartbeatInterval,
		"heartbeat_timeout", cfg.HeartbeatTimeout,
		"max_missed_pings", cfg.MaxMissedPings,
		"auth_provider_enabled", cfg.AuthProviderEnabled,
		"max_message_bytes", cfg.MaxMessageBytes,
		"max_messages_per_second", cfg.MaxMessagesPerSecond,
	)

	logStartupSecurityWarnings(logger, cfg)

	provider, err := auth.NewProvider(cfg)
	if err != nil {
		logger.Error("failed to configure auth provider", "err", err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	clock := ratelimit.RealClock{}
	m := metrics.New()
	registry := signalling.NewRegistry()
	sender := signalling.NewSender(registry, logger, m)
	validator := signalling.NewPayloadValidator(logger)
	calls := signalling.NewCallHandler(sender, logger)
	relay := signalling.NewRelayHandler(sender, logger)
	router := signalling.NewRouter(validator, calls, relay, sender, logger, m)
	ws := signalling.NewWebSocketServer(cfg, provider, registry, router, sender, clock, logger, m)
	monitor := signalling.NewMonitor(registry, sender, clock,
		cfg.HeartbeatInterval, cfg.HeartbeatTimeout, cfg.MaxMissedPings, logger, m)

	srv := httpserver.New(cfg, logger, resolveBuildInfo(), registry)
	srv.Mux().Handle("GET /signalling", ws)

	// Expose internal counters in Prometheus' text format.
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		stopMonitor()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	stopMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if !cfg.AuthProviderEnabled {
		logger.Warn("startup security warning: AUTH_PROVIDER_ENABLED=false accepts any numeric token as a user id",
			"warning_code", "static_auth_provider",
			"mode", cfg.Mode,
		)
	}

	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
				"warning_code", "allowed_origins_wildcard",
				"allowed_origins", cfg.AllowedOrigins,
				"mode", cfg.Mode,
			)
		}
	}
}

func resolveBuildInfo() httpserver.BuildInfo {
	commit, built := buildCommit, buildTime
	// Prefer ldflags-injected values (production builds) but fall back to the
	// Go build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	return httpserver.BuildInfo{Commit: commit, BuildTime: built}
}
