// Package channel implements one push-based duplex connection over a
// websocket route: idempotent connect, send valid only while open,
// explicit disconnect. Reconnection is the caller's responsibility.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

var (
	ErrNotOpen      = errors.New("channel not open")
	ErrBackpressure = errors.New("backpressure")
)

// Handler receives one decoded inbound frame: the type discriminator
// plus the raw payload for per-handler unmarshalling.
type Handler func(eventType string, data []byte)

type Options struct {
	// Name tags log lines; one logical route per channel.
	Name         string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func (o *Options) fill() {
	if o.Name == "" {
		o.Name = "channel"
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer == 0 {
		o.SendBuffer = 32
	}
}

// Channel owns at most one live transport. A reconnect replaces the
// transport, never stacks a second one; each transport carries a
// generation number so callbacks of a replaced transport are discarded.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer

	handler Handler
	onOpen  func()

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	send  chan []byte
	gen   uint64
}

func New(opts Options) *Channel {
	opts.fill()
	return &Channel{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		state:  StateIdle,
	}
}

// OnFrame registers the inbound dispatcher. Register before Connect.
func (c *Channel) OnFrame(h Handler) { c.handler = h }

// OnOpen runs after every successful Connect, once the state is OPEN.
// Used for auth handshakes and initial state flushes.
func (c *Channel) OnOpen(fn func()) { c.onOpen = fn }

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Connected() bool { return c.State() == StateOpen }

// Connect dials the route. No-op while already OPEN; otherwise any
// stale transport is closed first and a fresh one replaces it.
func (c *Channel) Connect(ctx context.Context, route string) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		log.Debug().Str("module", c.opts.Name).Msg("connect: already open")
		return nil
	}
	c.dropTransportLocked()
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, route, nil)
	if err != nil {
		c.mu.Lock()
		if gen == c.gen {
			c.state = StateErrored
		}
		c.mu.Unlock()
		log.Error().Err(err).Str("module", c.opts.Name).Str("route", route).Msg("dial failed")
		return fmt.Errorf("dial %s: %w", route, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		// Replaced while dialing; this transport lost the race.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.send = make(chan []byte, c.opts.SendBuffer)
	c.state = StateOpen
	send := c.send
	c.mu.Unlock()

	go c.writePump(gen, conn, send)
	go c.readPump(gen, conn)

	log.Info().Str("module", c.opts.Name).Str("route", route).Msg("connected")
	if c.onOpen != nil {
		c.onOpen()
	}
	return nil
}

// Send serializes v and queues it for the transport. Outside OPEN the
// frame is dropped with a local warning; this is not fatal.
func (c *Channel) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", c.opts.Name).Msg("send marshal")
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.send == nil {
		log.Warn().Str("module", c.opts.Name).Str("state", c.state.String()).Msg("send dropped: not open")
		return ErrNotOpen
	}
	select {
	case c.send <- b:
		return nil
	default:
		log.Warn().Str("module", c.opts.Name).Msg("send dropped: backpressure")
		return ErrBackpressure
	}
}

// Disconnect closes the transport and forces CLOSED. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed && c.conn == nil {
		return
	}
	c.gen++
	c.dropTransportLocked()
	c.state = StateClosed
	log.Info().Str("module", c.opts.Name).Msg("disconnected")
}

func (c *Channel) dropTransportLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// transportLost downgrades state after a mid-session failure, unless
// the failing transport has already been replaced.
func (c *Channel) transportLost(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	log.Warn().Err(err).Str("module", c.opts.Name).Msg("transport lost")
	c.dropTransportLocked()
	c.state = StateErrored
}

func (c *Channel) readPump(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.transportLost(gen, err)
			return
		}
		c.dispatch(gen, data)
	}
}

func (c *Channel) writePump(gen uint64, conn *websocket.Conn, send chan []byte) {
	for data := range send {
		if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.transportLost(gen, err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.transportLost(gen, err)
			return
		}
	}
}

// dispatch decodes the envelope and hands the frame to the handler.
// Frames read from a transport that has since been replaced or closed
// are discarded before the handler sees them; malformed frames are
// dropped and the channel stays open.
func (c *Channel) dispatch(gen uint64, data []byte) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		log.Debug().Str("module", c.opts.Name).Msg("frame from replaced transport dropped")
		return
	}
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", c.opts.Name).Msg("bad json frame dropped")
		return
	}
	if env.Type == "" {
		log.Warn().Str("module", c.opts.Name).Msg("frame without type dropped")
		return
	}
	if c.handler != nil {
		c.handler(env.Type, data)
	}
}
