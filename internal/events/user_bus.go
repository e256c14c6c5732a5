// Package events fans in the room's push channels: ephemeral user
// events (TTL'd), durable system events, and the settings broadcast.
// Each bus owns exactly one channel; they connect and disconnect
// independently and never assume joint availability.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

const (
	DefaultReactionTTL   = 5 * time.Second
	DefaultRaisedHandTTL = 10 * time.Second
)

// MediaSink receives media gossip carried on the user-event route.
type MediaSink interface {
	ApplyRemote(sid domain.SessionID, state domain.MediaState)
	ApplyBulk(states map[domain.SessionID]domain.MediaState)
}

type Reaction struct {
	ID       uint64
	Kind     string
	Username string
	At       time.Time
}

type RaisedHand struct {
	ID       uint64
	Username string
	At       time.Time
}

type ScreenShare struct {
	TrackSID string
	Username string
	At       time.Time
}

// UserBus holds the ephemeral room activity: reactions and raised
// hands live in sliding windows with an independent per-entry timer,
// screen shares are keyed by track id until the matching end event.
type UserBus struct {
	ch            *channel.Channel
	sink          MediaSink
	username      string
	reactionTTL   time.Duration
	raisedHandTTL time.Duration

	mu        sync.Mutex
	nextID    uint64
	reactions []Reaction
	raised    []RaisedHand
	shares    map[string]ScreenShare
}

type UserBusOptions struct {
	Channel       channel.Options
	Username      string
	ReactionTTL   time.Duration
	RaisedHandTTL time.Duration
}

func NewUserBus(opts UserBusOptions, sink MediaSink) *UserBus {
	if opts.Channel.Name == "" {
		opts.Channel.Name = "events.user"
	}
	if opts.ReactionTTL == 0 {
		opts.ReactionTTL = DefaultReactionTTL
	}
	if opts.RaisedHandTTL == 0 {
		opts.RaisedHandTTL = DefaultRaisedHandTTL
	}
	b := &UserBus{
		ch:            channel.New(opts.Channel),
		sink:          sink,
		username:      opts.Username,
		reactionTTL:   opts.ReactionTTL,
		raisedHandTTL: opts.RaisedHandTTL,
		shares:        make(map[string]ScreenShare),
	}
	b.ch.OnFrame(b.Dispatch)
	return b
}

func (b *UserBus) Connect(ctx context.Context, route string) error {
	return b.ch.Connect(ctx, route)
}

func (b *UserBus) Disconnect()     { b.ch.Disconnect() }
func (b *UserBus) Connected() bool { return b.ch.Connected() }

// Outbound helpers. Guarded by the channel contract: dropped with a
// local warning unless the channel is open.

func (b *UserBus) SendReaction(kind string) error {
	return b.ch.Send(domain.ReactionEvent{
		Type:         domain.EventReactionSent,
		ReactionType: kind,
		Username:     b.username,
	})
}

func (b *UserBus) SendRaisedHand(raised bool) error {
	return b.ch.Send(domain.RaisedHandEvent{
		Type:       domain.EventRaisedHandSent,
		RaisedHand: raised,
		Username:   b.username,
	})
}

func (b *UserBus) SendShareScreenStarted(trackSID string) error {
	return b.ch.Send(domain.ShareScreenEvent{
		Type:     domain.EventShareScreenStarted,
		TrackSID: trackSID,
		Username: b.username,
	})
}

func (b *UserBus) SendShareScreenEnded(trackSID string) error {
	return b.ch.Send(domain.ShareScreenEvent{
		Type:     domain.EventShareScreenEnded,
		TrackSID: trackSID,
	})
}

// Dispatch applies one inbound frame. Exposed so the session (and
// tests) can route frames that arrive on other surfaces.
func (b *UserBus) Dispatch(eventType string, data []byte) {
	switch eventType {
	case domain.EventReactionSent:
		var ev domain.ReactionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad reaction payload")
			return
		}
		b.addReaction(ev)
	case domain.EventRaisedHandSent:
		var ev domain.RaisedHandEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad raised hand payload")
			return
		}
		b.applyRaisedHand(ev)
	case domain.EventShareScreenStarted:
		var ev domain.ShareScreenEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad share payload")
			return
		}
		b.mu.Lock()
		b.shares[ev.TrackSID] = ScreenShare{TrackSID: ev.TrackSID, Username: ev.Username, At: time.Now()}
		b.mu.Unlock()
	case domain.EventShareScreenEnded:
		var ev domain.ShareScreenEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad share payload")
			return
		}
		b.mu.Lock()
		delete(b.shares, ev.TrackSID)
		b.mu.Unlock()
	case domain.EventMediaControl:
		var ev domain.MediaControlEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad media gossip payload")
			return
		}
		if b.sink != nil {
			b.sink.ApplyRemote(ev.SessionID, ev.Media)
		}
	case domain.EventSyncMedia:
		var ev domain.SyncMediaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "events.user").Msg("bad sync payload")
			return
		}
		if b.sink != nil {
			b.sink.ApplyBulk(ev.States)
		}
	default:
		log.Warn().Str("module", "events.user").Str("type", eventType).Msg("unknown user event")
	}
}

func (b *UserBus) addReaction(ev domain.ReactionEvent) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.reactions = append(b.reactions, Reaction{
		ID:       id,
		Kind:     ev.ReactionType,
		Username: ev.Username,
		At:       time.Now(),
	})
	b.mu.Unlock()

	// Each entry expires on its own clock, independent of its neighbors.
	time.AfterFunc(b.reactionTTL, func() { b.expireReaction(id) })
}

func (b *UserBus) expireReaction(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.reactions {
		if b.reactions[i].ID == id {
			b.reactions = append(b.reactions[:i], b.reactions[i+1:]...)
			return
		}
	}
}

func (b *UserBus) applyRaisedHand(ev domain.RaisedHandEvent) {
	if !ev.RaisedHand {
		b.mu.Lock()
		for i := range b.raised {
			if b.raised[i].Username == ev.Username {
				b.raised = append(b.raised[:i], b.raised[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	// Re-raising replaces the previous entry; its timer no-ops on a
	// missing id.
	for i := range b.raised {
		if b.raised[i].Username == ev.Username {
			b.raised = append(b.raised[:i], b.raised[i+1:]...)
			break
		}
	}
	b.nextID++
	id := b.nextID
	b.raised = append(b.raised, RaisedHand{ID: id, Username: ev.Username, At: time.Now()})
	b.mu.Unlock()

	time.AfterFunc(b.raisedHandTTL, func() { b.expireRaisedHand(id) })
}

func (b *UserBus) expireRaisedHand(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.raised {
		if b.raised[i].ID == id {
			b.raised = append(b.raised[:i], b.raised[i+1:]...)
			return
		}
	}
}

func (b *UserBus) Reactions() []Reaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Reaction, len(b.reactions))
	copy(out, b.reactions)
	return out
}

func (b *UserBus) RaisedHands() []RaisedHand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RaisedHand, len(b.raised))
	copy(out, b.raised)
	return out
}

func (b *UserBus) ScreenShares() []ScreenShare {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ScreenShare, 0, len(b.shares))
	for _, s := range b.shares {
		out = append(out, s)
	}
	return out
}
