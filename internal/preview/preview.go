// Package preview serves a read-only Motion JPEG view of the desktop over
// HTTP. It lets the operator check in a plain browser tab what a connected
// client currently sees, without speaking the websocket protocol.
package preview

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/screenpad/screenpad/internal/capture"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/encoder"
	"github.com/screenpad/screenpad/internal/logger"
)

// Options configures a Streamer.
type Options struct {
	// FPS is the capture rate while at least one viewer is connected.
	FPS int
	// Quality is the JPEG quality, 1-100.
	Quality int
	// MaxWidth and MaxHeight cap the streamed frame size. Zero disables
	// downscaling.
	MaxWidth  int
	MaxHeight int
}

// Streamer captures the primary desktop target on a timer and broadcasts the
// encoded frames to every connected HTTP client. Capture only runs while
// viewers are connected.
type Streamer struct {
	ctx  *display.Context
	opts Options

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
}

// NewStreamer returns a stopped streamer over the given display.
func NewStreamer(ctx *display.Context, opts Options) *Streamer {
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	return &Streamer{
		ctx:     ctx,
		opts:    opts,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start binds a capture session to the primary desktop target and launches
// the broadcast loop.
func (s *Streamer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("preview already running")
	}

	capturables, cerr := s.ctx.Capturables()
	if cerr != nil {
		return fmt.Errorf("could not enumerate targets: %w", cerr)
	}
	if len(capturables) == 0 {
		return fmt.Errorf("no capturable targets")
	}
	// The desktop target leads the enumeration; the rest is not ours to keep.
	target := capturables[0]
	for _, extra := range capturables[1:] {
		extra.Close()
	}

	session, cerr := capture.NewSession(target, true)
	if cerr != nil {
		return fmt.Errorf("could not start capture: %w", cerr)
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(session)

	logger.WithComponent("preview").Info().
		Str("target", target.Name()).
		Int("fps", s.opts.FPS).
		Msg("Preview stream started")
	return nil
}

// Stop shuts the broadcast loop down and disconnects every viewer.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done

	s.clientsMu.Lock()
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	s.clientsMu.Unlock()

	logger.WithComponent("preview").Info().Msg("Preview stream stopped")
}

// loop owns the session and the encoder; nothing else touches them.
func (s *Streamer) loop(session *capture.Session) {
	defer close(s.done)
	defer session.Close()

	log := logger.WithComponent("preview")
	enc := encoder.NewJPEG(s.opts.Quality, s.opts.MaxWidth, s.opts.MaxHeight)
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.clientsMu.RLock()
		idle := len(s.clients) == 0
		s.clientsMu.RUnlock()
		if idle {
			continue
		}

		if err := session.Capture(); err != nil {
			log.Warn().Err(err).Msg("Preview capture failed")
			continue
		}
		width, height := session.Size()
		frame, err := enc.Encode(session.PixelProvider(), width, height)
		if err != nil {
			log.Warn().Err(err).Msg("Preview encoding failed")
			continue
		}
		s.broadcast(frame)
	}
}

// broadcast hands the frame to every viewer. Slow viewers skip frames rather
// than stall the loop.
func (s *Streamer) broadcast(frame []byte) {
	data := append([]byte(nil), frame...)

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

// StreamHandler serves the multipart MJPEG stream.
func (s *Streamer) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Connection", "close")

		frames := make(chan []byte, 2)

		s.clientsMu.Lock()
		s.clients[frames] = struct{}{}
		count := len(s.clients)
		s.clientsMu.Unlock()
		logger.WithComponent("preview").Info().Int("viewers", count).Msg("Preview viewer connected")

		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, frames)
			count := len(s.clients)
			s.clientsMu.Unlock()
			logger.WithComponent("preview").Info().Int("viewers", count).Msg("Preview viewer disconnected")
		}()

		for frame := range frames {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// ViewerHandler serves a minimal page embedding the stream.
func (s *Streamer) ViewerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>screenpad preview</title>
<style>
body { margin: 0; background: #000; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
img { width: 100vw; height: 100vh; object-fit: contain; }
</style>
</head>
<body>
<img src="/preview/stream" alt="screenpad preview">
</body>
</html>`)
	}
}
