// Package api serves the client-facing websocket endpoint and dispatches
// the message envelope against the display and capture layers.
package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/screenpad/screenpad/internal/config"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/input"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/preview"
)

// Server owns the HTTP endpoints. Each websocket connection gets its own
// client with an independent capture session.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	ctx      *display.Context
	injector input.Injector
	cfg      *config.Config
}

// NewServer wires the routes. injector may be nil when input injection is
// disabled; pointer events are then dropped with a log line. prev may be nil
// when the browser preview is disabled.
func NewServer(ctx *display.Context, injector input.Injector, cfg *config.Config, prev *preview.Streamer) *Server {
	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Tablets connect from their own origin.
				return true
			},
		},
		ctx:      ctx,
		injector: injector,
		cfg:      cfg,
	}

	s.router.HandleFunc("/ws", s.handleWebsocket)
	if prev != nil {
		s.router.HandleFunc("/preview", prev.ViewerHandler())
		s.router.HandleFunc("/preview/stream", prev.StreamHandler())
	}
	s.router.HandleFunc("/", s.handleIndex)
	return s
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Server listening")
	return http.ListenAndServe(addr, s.router)
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := newClient(conn, s.ctx, s.injector, s.cfg)
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Client connected")
	c.run()
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Client disconnected")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>screenpad</title></head>
<body>
<h1>screenpad</h1>
<p>Server is running. Connect a client to <code>ws://%s/ws</code>.</p>
</body>
</html>`, r.Host)
}
