// Package session wires one room visit together: the directory, the
// media engine, the event buses and the SFU subscription share one
// session-scoped object, constructed at room entry and torn down at
// room exit. Nothing here is process-wide.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/config"
	"github.com/Panos61/videocall-app-client-sub000/internal/directory"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
	"github.com/Panos61/videocall-app-client-sub000/internal/events"
	"github.com/Panos61/videocall-app-client-sub000/internal/media"
	"github.com/Panos61/videocall-app-client-sub000/internal/reconcile"
	"github.com/Panos61/videocall-app-client-sub000/internal/sfu"
)

type Session struct {
	cfg   *config.Config
	local domain.SessionID

	dir      *directory.Directory
	media    *media.Engine
	users    *events.UserBus
	system   *events.SystemBus
	settings *events.SettingsBus
	sfu      sfu.Client

	mu       sync.RWMutex
	speakers []domain.SessionID
	tracks   map[string]sfu.TrackReference

	shutdown core.Fuse
	closed   atomic.Bool
}

func New(cfg *config.Config, sfuClient sfu.Client) *Session {
	local := domain.SessionID(cfg.SessionID)
	if local == "" {
		local = domain.SessionID(uuid.NewString())
	}

	api := directory.NewAPI(cfg.APIBase, cfg.AuthToken, cfg.HTTPTimeout)
	chOpts := channel.Options{
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		SendBuffer:   cfg.SendBuffer,
	}

	s := &Session{
		cfg:    cfg,
		local:  local,
		dir:    directory.New(api, cfg.RoomID),
		sfu:    sfuClient,
		tracks: make(map[string]sfu.TrackReference),
	}

	s.media = media.NewEngine(local, cfg.AuthToken, chOpts, sfuClient.Local())
	s.users = events.NewUserBus(events.UserBusOptions{
		Channel:       chOpts,
		Username:      cfg.Username,
		ReactionTTL:   cfg.ReactionTTL,
		RaisedHandTTL: cfg.RaisedHandTTL,
	}, s.media)
	s.system = events.NewSystemBus(chOpts)
	s.settings = events.NewSettingsBus(chOpts)

	s.system.OnMembershipStale(func() { s.refreshSoon(0, true) })
	s.system.OnRoomKilled(func() {
		log.Info().Str("module", "session").Msg("room killed; view is read-only")
	})

	return s
}

// Start performs the initial directory poll, connects the push
// channels and joins the SFU. Channel and SFU failures degrade (the
// connected flags stay observable); only a failed initial poll aborts.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.dir.Refresh(ctx); err != nil {
		return fmt.Errorf("initial directory refresh: %w", err)
	}
	if _, err := s.dir.RefreshMe(ctx); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("me lookup failed")
	}
	if info, err := s.dir.API().RoomInfo(ctx, s.cfg.RoomID); err == nil {
		log.Info().Str("module", "session").Str("room", string(info.Name)).Str("host", string(info.HostID)).Msg("room info")
	}
	if cs, err := s.dir.API().CallState(ctx, s.cfg.RoomID); err == nil && !cs.IsActive {
		log.Warn().Str("module", "session").Msg("joining a room without an active call")
	}

	s.sfu.Bind(sfu.Callbacks{
		OnConnected: func() {
			log.Info().Str("module", "session").Msg("sfu connected")
		},
		OnDisconnected: func() {
			log.Info().Str("module", "session").Msg("sfu disconnected")
		},
		OnParticipantConnected: func(sid domain.SessionID) {
			s.refreshSoon(0, false)
		},
		OnParticipantDisconnected: func(sid domain.SessionID) {
			s.media.Forget(sid)
			// Give the backend's own bookkeeping a moment to catch up.
			s.refreshSoon(s.cfg.SettleDelay, false)
		},
		OnTrackSubscribed:   s.addTrack,
		OnTrackUnsubscribed: s.removeTrack,
		OnActiveSpeakersChanged: func(sids []domain.SessionID) {
			s.mu.Lock()
			s.speakers = sids
			s.mu.Unlock()
		},
	})

	s.connectChannels(ctx)

	token, err := s.dir.API().SFUToken(ctx, s.cfg.RoomID, s.local)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("sfu token exchange failed")
		return nil
	}
	if err := s.sfu.Connect(ctx, s.cfg.SFUURL, token); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("sfu connect failed")
	}
	return nil
}

func (s *Session) connectChannels(ctx context.Context) {
	if err := s.media.Connect(ctx, s.route("media")); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("media channel connect failed")
	}
	if err := s.users.Connect(ctx, s.route("user-events")); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("user-event channel connect failed")
	}
	if err := s.system.Connect(ctx, s.route("system-events")); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("system-event channel connect failed")
	}
	if err := s.settings.Connect(ctx, s.route("settings")); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("settings channel connect failed")
	}
}

// Reconnect re-dials the push channels. There is no automatic retry
// loop; the caller decides when healing is worth attempting.
func (s *Session) Reconnect(ctx context.Context) {
	if s.closed.Load() {
		return
	}
	s.connectChannels(ctx)
}

func (s *Session) route(purpose string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.WSBase, s.cfg.RoomID, purpose)
}

// refreshSoon re-polls the directory after an optional settle delay.
// A refresh landing after Close is a no-op.
func (s *Session) refreshSoon(delay time.Duration, includeMe bool) {
	if s.closed.Load() {
		return
	}
	run := func() {
		if s.closed.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPTimeout)
		defer cancel()
		if _, err := s.dir.Refresh(ctx); err != nil {
			return
		}
		if includeMe {
			_, _ = s.dir.RefreshMe(ctx)
		}
	}
	if delay > 0 {
		time.AfterFunc(delay, run)
		return
	}
	go run()
}

func (s *Session) addTrack(ref sfu.TrackReference) {
	s.mu.Lock()
	s.tracks[trackKey(ref)] = ref
	s.mu.Unlock()
}

func (s *Session) removeTrack(ref sfu.TrackReference) {
	s.mu.Lock()
	delete(s.tracks, trackKey(ref))
	s.mu.Unlock()
}

func trackKey(ref sfu.TrackReference) string {
	if ref.Track != nil {
		return ref.Track.ID()
	}
	return string(ref.ParticipantIdentity) + "/" + string(ref.Kind)
}

// View derives the current room view. Reading it after Close is a
// composition bug, not a runtime condition, and fails loudly.
func (s *Session) View() reconcile.View {
	if s.closed.Load() {
		panic("session: View called after Close")
	}
	s.mu.RLock()
	speakers := s.speakers
	s.mu.RUnlock()
	return reconcile.Derive(s.dir.Snapshot(), s.sfu.LiveSessions(), speakers, s.local)
}

// Tracks returns the currently subscribed track references.
func (s *Session) Tracks() []sfu.TrackReference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sfu.TrackReference, 0, len(s.tracks))
	for _, ref := range s.tracks {
		out = append(out, ref)
	}
	return out
}

func (s *Session) SessionID() domain.SessionID     { return s.local }
func (s *Session) Directory() *directory.Directory { return s.dir }
func (s *Session) Media() *media.Engine            { return s.media }
func (s *Session) Users() *events.UserBus          { return s.users }
func (s *Session) System() *events.SystemBus       { return s.system }
func (s *Session) Settings() *events.SettingsBus   { return s.settings }

// Done closes when the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.shutdown.Watch() }

// Close tears down every channel and the SFU connection. Idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.media.Disconnect()
	s.users.Disconnect()
	s.system.Disconnect()
	s.settings.Disconnect()
	s.sfu.Close()
	s.dir.Close()
	s.shutdown.Break()
	log.Info().Str("module", "session").Str("room", s.cfg.RoomID).Msg("session closed")
}
