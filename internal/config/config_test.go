package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupFromMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFromMap(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("Mode=%q, want dev", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat=%q, want text in dev mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel=%v, want debug in dev mode", cfg.LogLevel)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval=%v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.HeartbeatTimeout != 60*time.Second {
		t.Errorf("HeartbeatTimeout=%v, want 60s", cfg.HeartbeatTimeout)
	}
	if cfg.MaxMissedPings != 2 {
		t.Errorf("MaxMissedPings=%d, want 2", cfg.MaxMissedPings)
	}
	if cfg.AuthProviderEnabled {
		t.Errorf("AuthProviderEnabled=true, want false by default")
	}
	if cfg.AuthProviderConnectTimeout != 500*time.Millisecond {
		t.Errorf("AuthProviderConnectTimeout=%v, want 500ms", cfg.AuthProviderConnectTimeout)
	}
}

func TestLoad_ProdModeSwitchesLogDefaults(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{"SIGNALLING_MODE": "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat=%q, want json in prod mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel=%v, want info in prod mode", cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := map[string]string{
		"HEARTBEAT_INTERVAL": "10s",
		"ALLOWED_ORIGINS":    "https://a.example",
	}
	cfg, err := load(lookupFromMap(env), []string{
		"--heartbeat-interval=5s",
		"--allowed-origins=https://a.example, https://b.example",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval=%v, want flag value 5s", cfg.HeartbeatInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins=%v, want two trimmed entries", cfg.AllowedOrigins)
	}
}

func TestLoad_RemoteAuthRequiresURL(t *testing.T) {
	_, err := load(lookupFromMap(map[string]string{"AUTH_PROVIDER_ENABLED": "true"}), nil)
	if err == nil {
		t.Fatalf("load succeeded, want error for missing AUTH_PROVIDER_URL")
	}
	if !strings.Contains(err.Error(), "AUTH_PROVIDER_URL") {
		t.Errorf("err=%v, want mention of AUTH_PROVIDER_URL", err)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad heartbeat interval", env: map[string]string{"HEARTBEAT_INTERVAL": "soon"}},
		{name: "zero heartbeat timeout", args: []string{"--heartbeat-timeout=0s"}},
		{name: "negative missed pings", args: []string{"--heartbeat-max-missed-pings=-1"}},
		{name: "bad mode", args: []string{"--mode=staging"}},
		{name: "bad log level", args: []string{"--log-level=verbose"}},
		{name: "zero message bytes", args: []string{"--max-message-bytes=0"}},
		{name: "bad auth url", env: map[string]string{
			"AUTH_PROVIDER_ENABLED": "true",
			"AUTH_PROVIDER_URL":     "not a url",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := load(lookupFromMap(tc.env), tc.args); err == nil {
				t.Fatalf("load succeeded, want error")
			}
		})
	}
}
