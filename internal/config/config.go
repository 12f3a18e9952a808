package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVarListenAddr      = "SIGNALLING_LISTEN_ADDR"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"
	envVarMode            = "SIGNALLING_MODE"
	envVarLogFormat       = "SIGNALLING_LOG_FORMAT"
	envVarLogLevel        = "SIGNALLING_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNALLING_SHUTDOWN_TIMEOUT"

	// Heartbeat protocol knobs.
	envVarHeartbeatInterval = "HEARTBEAT_INTERVAL"
	envVarHeartbeatTimeout  = "HEARTBEAT_TIMEOUT"
	envVarMaxMissedPings    = "HEARTBEAT_MAX_MISSED_PINGS"

	// Auth provider selection + remote identity service endpoint.
	envVarAuthProviderEnabled        = "AUTH_PROVIDER_ENABLED"
	envVarAuthProviderURL            = "AUTH_PROVIDER_URL"
	envVarAuthProviderConnectTimeout = "AUTH_PROVIDER_CONNECT_TIMEOUT"
	envVarAuthProviderReadTimeout    = "AUTH_PROVIDER_READ_TIMEOUT"

	// Inbound signalling hardening.
	envVarMaxMessageBytes      = "MAX_SIGNALLING_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_SIGNALLING_MESSAGES_PER_SECOND"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdown        = 15 * time.Second
	DefaultMode       Mode = ModeDev

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 60 * time.Second
	DefaultMaxMissedPings    = 2

	DefaultAuthProviderConnectTimeout = 500 * time.Millisecond
	DefaultAuthProviderReadTimeout    = 500 * time.Millisecond

	DefaultMaxMessageBytes            = int64(64 * 1024)
	DefaultMaxMessagesPerSecond       = 50
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// Heartbeat sweep: every HeartbeatInterval, users idle for more than
	// HeartbeatTimeout accumulate missed pings; past MaxMissedPings the
	// connection is evicted.
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxMissedPings    int

	// AuthProviderEnabled selects the remote identity-service provider; when
	// false a static dev provider is used (the token is the user id).
	AuthProviderEnabled        bool
	AuthProviderURL            string
	AuthProviderConnectTimeout time.Duration
	AuthProviderReadTimeout    time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	authProviderURL := envOrDefault(lookup, envVarAuthProviderURL, "")

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	heartbeatInterval, err := envDurationOrDefault(lookup, envVarHeartbeatInterval, DefaultHeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	heartbeatTimeout, err := envDurationOrDefault(lookup, envVarHeartbeatTimeout, DefaultHeartbeatTimeout)
	if err != nil {
		return Config{}, err
	}
	maxMissedPings, err := envIntOrDefault(lookup, envVarMaxMissedPings, DefaultMaxMissedPings)
	if err != nil {
		return Config{}, err
	}
	authConnectTimeout, err := envDurationOrDefault(lookup, envVarAuthProviderConnectTimeout, DefaultAuthProviderConnectTimeout)
	if err != nil {
		return Config{}, err
	}
	authReadTimeout, err := envDurationOrDefault(lookup, envVarAuthProviderReadTimeout, DefaultAuthProviderReadTimeout)
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}

	authProviderEnabled := false
	if raw, ok := lookup(envVarAuthProviderEnabled); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarAuthProviderEnabled, raw, err)
		}
		authProviderEnabled = v
	}

	maxMessageBytes := DefaultMaxMessageBytes
	if raw, ok := lookup(envVarMaxMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxMessageBytes, raw, err)
		}
		maxMessageBytes = n
	}

	fs := flag.NewFlagSet("signalling-server", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+")")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (env "+envVarShutdownTimeout+")")
	fs.DurationVar(&heartbeatInterval, "heartbeat-interval", heartbeatInterval, "Heartbeat sweep period (env "+envVarHeartbeatInterval+")")
	fs.DurationVar(&heartbeatTimeout, "heartbeat-timeout", heartbeatTimeout, "Idle duration after which a user starts missing pings (env "+envVarHeartbeatTimeout+")")
	fs.IntVar(&maxMissedPings, "heartbeat-max-missed-pings", maxMissedPings, "Missed pings tolerated before eviction (env "+envVarMaxMissedPings+")")
	fs.BoolVar(&authProviderEnabled, "auth-provider-enabled", authProviderEnabled, "Validate tokens against the remote identity service instead of the static dev provider (env "+envVarAuthProviderEnabled+")")
	fs.StringVar(&authProviderURL, "auth-provider-url", authProviderURL, "Identity service token validation endpoint (env "+envVarAuthProviderURL+")")
	fs.DurationVar(&authConnectTimeout, "auth-provider-connect-timeout", authConnectTimeout, "Identity service connect timeout (env "+envVarAuthProviderConnectTimeout+")")
	fs.DurationVar(&authReadTimeout, "auth-provider-read-timeout", authReadTimeout, "Identity service read timeout (env "+envVarAuthProviderReadTimeout+")")
	fs.Int64Var(&maxMessageBytes, "max-message-bytes", maxMessageBytes, "Max inbound signalling message size in bytes (env "+envVarMaxMessageBytes+")")
	fs.IntVar(&maxMessagesPerSecond, "max-messages-per-second", maxMessagesPerSecond, "Max inbound signalling messages per second per connection (env "+envVarMaxMessagesPerSecond+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}

	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	if listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if heartbeatInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--heartbeat-interval must be > 0", envVarHeartbeatInterval)
	}
	if heartbeatTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--heartbeat-timeout must be > 0", envVarHeartbeatTimeout)
	}
	if maxMissedPings < 0 {
		return Config{}, fmt.Errorf("%s/--heartbeat-max-missed-pings must be >= 0", envVarMaxMissedPings)
	}
	if authProviderEnabled {
		if strings.TrimSpace(authProviderURL) == "" {
			return Config{}, fmt.Errorf("%s must be set when %s=true", envVarAuthProviderURL, envVarAuthProviderEnabled)
		}
		u, err := url.Parse(authProviderURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("invalid %s %q", envVarAuthProviderURL, authProviderURL)
		}
		if authConnectTimeout <= 0 {
			return Config{}, fmt.Errorf("%s/--auth-provider-connect-timeout must be > 0", envVarAuthProviderConnectTimeout)
		}
		if authReadTimeout <= 0 {
			return Config{}, fmt.Errorf("%s/--auth-provider-read-timeout must be > 0", envVarAuthProviderReadTimeout)
		}
	}
	if maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-message-bytes must be > 0", envVarMaxMessageBytes)
	}
	if maxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s/--max-messages-per-second must be > 0", envVarMaxMessagesPerSecond)
	}

	return Config{
		ListenAddr:      listenAddr,
		AllowedOrigins:  splitCommaList(allowedOriginsStr),
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,

		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		MaxMissedPings:    maxMissedPings,

		AuthProviderEnabled:        authProviderEnabled,
		AuthProviderURL:            authProviderURL,
		AuthProviderConnectTimeout: authConnectTimeout,
		AuthProviderReadTimeout:    authReadTimeout,

		MaxMessageBytes:      maxMessageBytes,
		MaxMessagesPerSecond: maxMessagesPerSecond,
	}, nil
}

func parseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDev:
		return ModeDev, nil
	case ModeProd:
		return ModeProd, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (want dev or prod)", s)
	}
}

func parseLogFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case LogFormatText:
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (want text or json)", s)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", s)
	}
}

func defaultLogFormatForMode(mode string) string {
	if Mode(mode) == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode string) string {
	if Mode(mode) == ModeProd {
		return "info"
	}
	return "debug"
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
