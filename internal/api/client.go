package api

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/screenpad/screenpad/internal/capture"
	"github.com/screenpad/screenpad/internal/config"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/encoder"
	"github.com/screenpad/screenpad/internal/input"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/protocol"
)

// wsConn is the part of a websocket connection the client needs.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client handles one websocket connection. Inbound messages are dispatched
// from a single reader loop; only the capture worker runs concurrently with
// it, guarded by stateMu and the in-flight flag.
type client struct {
	conn     wsConn
	ctx      *display.Context
	injector input.Injector
	cfg      *config.Config

	writeMu sync.Mutex

	stateMu     sync.Mutex
	capturables []*display.Capturable
	session     *capture.Session
	clientCfg   *protocol.ClientConfiguration
	enc         encoder.Encoder

	// inFlight is set while a capture/encode runs. Frame requests arriving
	// in that window are dropped, not queued: the client owns the retry.
	inFlight atomic.Bool
	captures sync.WaitGroup
}

func newClient(conn wsConn, ctx *display.Context, injector input.Injector, cfg *config.Config) *client {
	return &client{
		conn:     conn,
		ctx:      ctx,
		injector: injector,
		cfg:      cfg,
	}
}

// run reads messages until the connection drops, then releases every native
// resource the connection acquired.
func (c *client) run() {
	defer c.shutdown()
	log := logger.WithComponent("api")

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			log.Debug().Err(err).Msg("Dropping malformed message")
			c.send(protocol.ErrorMessage("malformed message"))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *client) dispatch(msg protocol.MessageInbound) {
	switch m := msg.(type) {
	case *protocol.PointerEvent:
		c.pointerEvent(m)
	case protocol.TryGetFrame:
		c.tryGetFrame()
	case protocol.GetCapturableList:
		c.sendCapturableList()
	case *protocol.ClientConfiguration:
		c.configure(m)
	}
}

// shutdown tears the connection's resources down: session before targets,
// targets before the shared display reference they hold.
func (c *client) shutdown() {
	c.captures.Wait()

	c.stateMu.Lock()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.dropCapturables()
	c.stateMu.Unlock()

	c.conn.Close()
}

// dropCapturables releases the enumeration. Caller holds stateMu.
func (c *client) dropCapturables() {
	for _, target := range c.capturables {
		target.Close()
	}
	c.capturables = nil
}

// refreshCapturables re-enumerates targets. Caller holds stateMu.
func (c *client) refreshCapturables() error {
	capturables, cerr := c.ctx.Capturables()
	if cerr != nil {
		return cerr
	}
	c.dropCapturables()
	c.capturables = capturables
	return nil
}

func (c *client) sendCapturableList() {
	c.stateMu.Lock()
	err := c.refreshCapturables()
	if err != nil {
		c.stateMu.Unlock()
		logger.WithComponent("api").Error().Err(err).Msg("Target enumeration failed")
		c.send(protocol.ErrorMessage("could not enumerate capturable targets"))
		return
	}
	names := make([]string, 0, len(c.capturables))
	for _, target := range c.capturables {
		names = append(names, target.Name())
	}
	c.stateMu.Unlock()

	c.send(protocol.CapturableList(names))
}

// configure binds a new capture session. The capturable id indexes the
// enumeration last sent to this client, so the list is only refreshed when
// none exists yet. ConfigOk is sent before any frame references the new
// configuration; NewVideo announces the fresh stream.
func (c *client) configure(cfg *protocol.ClientConfiguration) {
	c.stateMu.Lock()

	if len(c.capturables) == 0 {
		if err := c.refreshCapturables(); err != nil {
			c.stateMu.Unlock()
			c.send(protocol.ConfigError(fmt.Sprintf("could not enumerate targets: %v", err)))
			return
		}
	}
	if cfg.CapturableID < 0 || cfg.CapturableID >= len(c.capturables) {
		c.stateMu.Unlock()
		c.send(protocol.ConfigError(fmt.Sprintf("invalid capturable id %d", cfg.CapturableID)))
		return
	}

	if c.session != nil {
		c.session.Close()
		c.session = nil
	}

	target := c.capturables[cfg.CapturableID].Clone()
	session, cerr := capture.NewSession(target, cfg.CaptureCursor)
	if cerr != nil {
		c.stateMu.Unlock()
		logger.WithComponent("api").Error().
			Int32("code", cerr.Code).
			Str("message", cerr.Message).
			Msg("Failed to start capture session")
		c.send(protocol.ConfigError(fmt.Sprintf("could not start capture: %s", cerr.Message)))
		return
	}

	c.session = session
	c.clientCfg = cfg
	c.enc = encoder.NewJPEG(c.cfg.JPEGQuality, cfg.MaxWidth, cfg.MaxHeight)
	name := session.Target().Name()
	c.stateMu.Unlock()

	logger.WithComponent("api").Info().
		Str("target", name).
		Int("max_width", cfg.MaxWidth).
		Int("max_height", cfg.MaxHeight).
		Bool("stylus", cfg.StylusSupport).
		Msg("Capture configured")

	c.send(protocol.ConfigOk{})
	c.send(protocol.NewVideo{})
}

// tryGetFrame serves at most one frame request at a time. A request that
// arrives while a capture/encode is in flight produces nothing at all.
func (c *client) tryGetFrame() {
	if !c.inFlight.CompareAndSwap(false, true) {
		return
	}
	c.captures.Add(1)
	go func() {
		defer c.captures.Done()
		defer c.inFlight.Store(false)
		c.captureAndSend()
	}()
}

func (c *client) captureAndSend() {
	log := logger.WithComponent("api")

	c.stateMu.Lock()
	session, enc := c.session, c.enc
	if session == nil {
		c.stateMu.Unlock()
		c.send(protocol.ErrorMessage("no capture session configured"))
		return
	}
	if err := session.Capture(); err != nil {
		c.stateMu.Unlock()
		log.Warn().Err(err).Msg("Frame capture failed")
		c.send(protocol.ErrorMessage("could not capture frame"))
		return
	}
	width, height := session.Size()
	data, err := enc.Encode(session.PixelProvider(), width, height)
	c.stateMu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Frame encoding failed")
		c.send(protocol.ErrorMessage("could not encode frame"))
		return
	}
	c.sendBinary(data)
}

// pointerEvent replays one input event against the bound target. The
// before-input hook runs first so the target is raised and focused; its
// failure is advisory.
func (c *client) pointerEvent(ev *protocol.PointerEvent) {
	log := logger.WithComponent("api")

	if c.injector == nil {
		log.Debug().Msg("Input injection disabled, dropping pointer event")
		return
	}

	c.stateMu.Lock()
	session := c.session
	c.stateMu.Unlock()
	if session == nil {
		log.Debug().Msg("No capture session bound, dropping pointer event")
		return
	}
	target := session.Target()

	if cerr := target.BeforeInput(); cerr != nil {
		log.Debug().
			Int32("code", cerr.Code).
			Str("message", cerr.Message).
			Msg("Before-input hook failed")
	}

	geom, cerr := target.Geometry()
	if cerr != nil {
		log.Error().
			Int32("code", cerr.Code).
			Str("message", cerr.Message).
			Msg("Failed to get target geometry")
		c.send(protocol.ErrorMessage("could not get target geometry"))
		return
	}

	x := geom.X + ev.X*geom.Width
	y := geom.Y + ev.Y*geom.Height
	if err := c.injector.PointerEvent(ev, x, y); err != nil {
		log.Warn().Err(err).Msg("Input injection failed")
	}
}

func (c *client) send(m protocol.MessageOutbound) {
	data, err := protocol.EncodeOutbound(m)
	if err != nil {
		logger.WithComponent("api").Error().Err(err).Msg("Failed to encode outbound message")
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Websocket write failed")
	}
}

func (c *client) sendBinary(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Websocket write failed")
	}
}
