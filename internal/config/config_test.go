package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.ServerURL != "ws://localhost:8080/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) == 0 {
		t.Fatalf("ICEServers = %+v, want one default STUN entry", cfg.ICEServers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DYAD_LISTEN_ADDR", ":9000")
	t.Setenv("DYAD_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DYAD_STUN_URLS", "stun:stun.example:3478")
	t.Setenv("DYAD_TURN_URL", "turn:turn.example:3478")
	t.Setenv("DYAD_TURN_USERNAME", "user")
	t.Setenv("DYAD_TURN_CREDENTIAL", "secret")

	cfg := Load()

	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.ListenAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v, want trimmed pair", cfg.AllowedOrigins)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("ICEServers = %+v, want STUN and TURN", cfg.ICEServers)
	}
	if cfg.ICEServers[0].URLs[0] != "stun:stun.example:3478" {
		t.Errorf("STUN = %+v", cfg.ICEServers[0])
	}
	turn := cfg.ICEServers[1]
	if turn.URLs[0] != "turn:turn.example:3478" || turn.Username != "user" || turn.Credential != "secret" {
		t.Errorf("TURN = %+v", turn)
	}
}
