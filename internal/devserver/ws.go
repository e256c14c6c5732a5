package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans every inbound frame out to every connection on one route,
// sender included, so clients exercise their own echo suppression.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("module", "devserver").Msg("broadcast write failed")
		}
	}
}

// Hubs keys one hub per (room, route purpose).
type Hubs struct {
	mu   sync.Mutex
	hubs map[string]*hub
}

func NewHubs() *Hubs {
	return &Hubs{hubs: make(map[string]*hub)}
}

func (hs *Hubs) get(room, purpose string) *hub {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	key := room + "/" + purpose
	h, ok := hs.hubs[key]
	if !ok {
		h = &hub{conns: make(map[*websocket.Conn]bool)}
		hs.hubs[key] = h
	}
	return h
}

// Broadcast injects a server-originated event on a route, e.g. a
// host-lifecycle event scripted by a test.
func (hs *Hubs) Broadcast(room, purpose string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	hs.get(room, purpose).broadcast(b)
	return nil
}

// Handle upgrades the request and pumps frames. Routes with requireAuth
// expect an auth frame as the very first message and drop the
// connection otherwise.
func (hs *Hubs) Handle(c *gin.Context, purpose string, requireAuth bool) {
	room := c.Param("room")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("ws upgrade")
		return
	}

	if requireAuth {
		_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			_ = ws.Close()
			return
		}
		var auth domain.AuthFrame
		if err := json.Unmarshal(data, &auth); err != nil || auth.Type != domain.EventAuth || auth.SessionID == "" {
			log.Warn().Str("module", "devserver").Str("purpose", purpose).Msg("missing auth frame; closing")
			_ = ws.Close()
			return
		}
		_ = ws.SetReadDeadline(time.Time{})
		log.Info().Str("module", "devserver").Str("purpose", purpose).Str("sid", string(auth.SessionID)).Msg("authenticated")
	}

	h := hs.get(room, purpose)
	h.add(ws)
	defer func() {
		h.remove(ws)
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.broadcast(data)
	}
}
