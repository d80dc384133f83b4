package config

import (
	"os"
	"strings"
)

// ICEServer is one STUN or TURN entry handed to the negotiation engine.
// Username and Credential are empty for STUN.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Config carries the process configuration for both the relay server and
// the peer client. Everything comes from the environment with sensible
// local-development defaults.
type Config struct {
	// ListenAddr is the relay server's bind address.
	ListenAddr string

	// ServerURL is the signaling endpoint a peer dials.
	ServerURL string

	// AllowedOrigins restricts websocket upgrades on the relay. Empty means
	// same-host only.
	AllowedOrigins []string

	// StaticDir, when set, is served by the relay at the root path.
	StaticDir string

	ICEServers []ICEServer
}

func Load() Config {
	cfg := Config{
		ListenAddr:     getEnv("DYAD_LISTEN_ADDR", ":8080"),
		ServerURL:      getEnv("DYAD_SERVER_URL", "ws://localhost:8080/ws"),
		AllowedOrigins: splitEnv("DYAD_ALLOWED_ORIGINS"),
		StaticDir:      os.Getenv("DYAD_STATIC_DIR"),
	}

	stun := splitEnv("DYAD_STUN_URLS")
	if len(stun) == 0 {
		stun = []string{"stun:stun.l.google.com:19302"}
	}
	cfg.ICEServers = append(cfg.ICEServers, ICEServer{URLs: stun})

	if turn := os.Getenv("DYAD_TURN_URL"); turn != "" {
		cfg.ICEServers = append(cfg.ICEServers, ICEServer{
			URLs:       []string{turn},
			Username:   os.Getenv("DYAD_TURN_USERNAME"),
			Credential: os.Getenv("DYAD_TURN_CREDENTIAL"),
		})
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
