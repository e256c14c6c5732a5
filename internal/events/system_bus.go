package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// ringSize bounds the raw event history kept for diagnostics and late
// consumers.
const ringSize = 20

// RawEvent is one system frame as received, before interpretation.
type RawEvent struct {
	Type string
	Data json.RawMessage
	At   time.Time
}

type HostLeftRecord struct {
	Event      domain.HostLeftEvent
	ReceivedAt time.Time
}

type HostUpdatedRecord struct {
	Event      domain.HostUpdatedEvent
	ReceivedAt time.Time
}

type RoomKilledRecord struct {
	Event      domain.RoomKilledEvent
	ReceivedAt time.Time
}

// SystemBus carries the durable host-lifecycle events. Each "latest"
// cell is overwritten on its matching event type; host changes
// additionally flag the directory stale through the registered hook.
//
// room.killed is terminal for the local view only: the channel stays
// open until the caller decides to close it.
type SystemBus struct {
	ch *channel.Channel

	onMembershipStale func()
	onRoomKilled      func()

	killed atomic.Bool

	mu               sync.Mutex
	ring             []RawEvent
	latestHostLeft   *HostLeftRecord
	latestHostUpdate *HostUpdatedRecord
	latestRoomKilled *RoomKilledRecord
}

func NewSystemBus(opts channel.Options) *SystemBus {
	if opts.Name == "" {
		opts.Name = "events.system"
	}
	b := &SystemBus{ch: channel.New(opts)}
	b.ch.OnFrame(b.Dispatch)
	return b
}

// OnMembershipStale registers the directory-invalidation hook, fired
// on host.left and host.updated. Register before Connect.
func (b *SystemBus) OnMembershipStale(fn func()) { b.onMembershipStale = fn }

// OnRoomKilled registers the terminal-view hook. Register before Connect.
func (b *SystemBus) OnRoomKilled(fn func()) { b.onRoomKilled = fn }

func (b *SystemBus) Connect(ctx context.Context, route string) error {
	return b.ch.Connect(ctx, route)
}

func (b *SystemBus) Disconnect()     { b.ch.Disconnect() }
func (b *SystemBus) Connected() bool { return b.ch.Connected() }

func (b *SystemBus) Send(event any) error { return b.ch.Send(event) }

// Dispatch applies one inbound system frame.
func (b *SystemBus) Dispatch(eventType string, data []byte) {
	now := time.Now()

	b.mu.Lock()
	b.ring = append(b.ring, RawEvent{Type: eventType, Data: append(json.RawMessage(nil), data...), At: now})
	if len(b.ring) > ringSize {
		b.ring = b.ring[len(b.ring)-ringSize:]
	}
	b.mu.Unlock()

	switch eventType {
	case domain.EventHostLeft:
		var ev domain.HostLeftEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.system").Msg("bad host.left payload")
			return
		}
		b.mu.Lock()
		b.latestHostLeft = &HostLeftRecord{Event: ev, ReceivedAt: now}
		b.mu.Unlock()
		log.Info().Str("module", "events.system").Str("previous_host", string(ev.PreviousHostID)).Msg("host left")
		if b.onMembershipStale != nil {
			b.onMembershipStale()
		}
	case domain.EventHostUpdated:
		var ev domain.HostUpdatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.system").Msg("bad host.updated payload")
			return
		}
		b.mu.Lock()
		b.latestHostUpdate = &HostUpdatedRecord{Event: ev, ReceivedAt: now}
		b.mu.Unlock()
		log.Info().Str("module", "events.system").Str("new_host", string(ev.NewHostID)).Msg("host updated")
		if b.onMembershipStale != nil {
			b.onMembershipStale()
		}
	case domain.EventRoomKilled:
		var ev domain.RoomKilledEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.system").Msg("bad room.killed payload")
			return
		}
		b.mu.Lock()
		b.latestRoomKilled = &RoomKilledRecord{Event: ev, ReceivedAt: now}
		b.mu.Unlock()
		b.killed.Store(true)
		log.Info().Str("module", "events.system").Msg("room killed")
		if b.onRoomKilled != nil {
			b.onRoomKilled()
		}
	default:
		log.Warn().Str("module", "events.system").Str("type", eventType).Msg("unknown system event")
	}
}

// RoomKilled reports whether the local view should be read-only.
func (b *SystemBus) RoomKilled() bool { return b.killed.Load() }

func (b *SystemBus) LatestHostLeft() *HostLeftRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestHostLeft
}

func (b *SystemBus) LatestHostUpdate() *HostUpdatedRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestHostUpdate
}

func (b *SystemBus) LatestRoomKilled() *RoomKilledRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestRoomKilled
}

// History returns the bounded raw event ring, oldest first.
func (b *SystemBus) History() []RawEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RawEvent, len(b.ring))
	copy(out, b.ring)
	return out
}
