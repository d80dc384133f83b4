package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/dyadchat/dyad/internal/config"
)

// Handler serves the signaling relay: the websocket endpoint plus an
// optional static directory for a bundled frontend.
type Handler struct {
	hub      *Hub
	cfg      config.Config
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg config.Config) *Handler {
	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if h.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.cfg.StaticDir)))
	}
	return r
}

// originChecker allows the configured origins; "*" allows any. With no
// configuration the upgrader's same-host default applies.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		if set["*"] {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}
