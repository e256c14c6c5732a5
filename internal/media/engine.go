// Package media tracks local capture intent and every other
// participant's reported media flags.
package media

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// Controls is the slice of the SFU client the engine drives when the
// local user toggles capture.
type Controls interface {
	SetCameraEnabled(enabled bool) error
	SetMicrophoneEnabled(enabled bool) error
}

// Engine owns the local MediaState and a sessionId -> MediaState map of
// remote copies. Remote entries are overwritten wholesale on every
// update: last write wins, out-of-order delivery is tolerated.
type Engine struct {
	sessionID domain.SessionID
	token     string
	ch        *channel.Channel
	controls  Controls

	mu          sync.RWMutex
	local       domain.MediaState
	audioDevice string
	videoDevice string
	remote      map[domain.SessionID]domain.MediaState
}

func NewEngine(sessionID domain.SessionID, token string, opts channel.Options, controls Controls) *Engine {
	if opts.Name == "" {
		opts.Name = "media"
	}
	e := &Engine{
		sessionID: sessionID,
		token:     token,
		ch:        channel.New(opts),
		controls:  controls,
		remote:    make(map[domain.SessionID]domain.MediaState),
	}
	e.ch.OnFrame(e.handleFrame)
	e.ch.OnOpen(e.handshake)
	return e
}

// Connect opens the media route. Any previous connection is torn down
// first: at most one media channel is open at a time. Once open, the
// handshake authenticates and flushes the current local state so a
// late joiner is known to the room without waiting for a toggle.
func (e *Engine) Connect(ctx context.Context, route string) error {
	e.ch.Disconnect()
	return e.ch.Connect(ctx, route)
}

func (e *Engine) Disconnect()     { e.ch.Disconnect() }
func (e *Engine) Connected() bool { return e.ch.Connected() }

func (e *Engine) handshake() {
	_ = e.ch.Send(domain.AuthFrame{
		Type:      domain.EventAuth,
		Token:     e.token,
		SessionID: e.sessionID,
	})
	e.mu.RLock()
	state := e.local
	e.mu.RUnlock()
	e.broadcast(state)
}

// SetAudio mutates local intent and, if connected, broadcasts it.
func (e *Engine) SetAudio(on bool) {
	e.mu.Lock()
	e.local.Audio = on
	state := e.local
	e.mu.Unlock()

	if e.controls != nil {
		if err := e.controls.SetMicrophoneEnabled(on); err != nil {
			log.Warn().Err(err).Str("module", "media").Msg("microphone toggle failed")
		}
	}
	e.broadcast(state)
}

func (e *Engine) SetVideo(on bool) {
	e.mu.Lock()
	e.local.Video = on
	state := e.local
	e.mu.Unlock()

	if e.controls != nil {
		if err := e.controls.SetCameraEnabled(on); err != nil {
			log.Warn().Err(err).Str("module", "media").Msg("camera toggle failed")
		}
	}
	e.broadcast(state)
}

// SetAudioDevice switches the capture device. While audio is live the
// switch is realized as disable then re-enable, so observers see a
// deterministic off->on transition instead of a silent swap.
func (e *Engine) SetAudioDevice(deviceID string) {
	e.mu.Lock()
	active := e.local.Audio
	e.audioDevice = deviceID
	e.mu.Unlock()

	if active {
		e.SetAudio(false)
		e.SetAudio(true)
	}
}

func (e *Engine) SetVideoDevice(deviceID string) {
	e.mu.Lock()
	active := e.local.Video
	e.videoDevice = deviceID
	e.mu.Unlock()

	if active {
		e.SetVideo(false)
		e.SetVideo(true)
	}
}

func (e *Engine) Local() domain.MediaState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.local
}

func (e *Engine) AudioDevice() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.audioDevice
}

func (e *Engine) VideoDevice() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.videoDevice
}

func (e *Engine) Remote(sid domain.SessionID) (domain.MediaState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.remote[sid]
	return s, ok
}

func (e *Engine) RemoteStates() map[domain.SessionID]domain.MediaState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[domain.SessionID]domain.MediaState, len(e.remote))
	for sid, s := range e.remote {
		out[sid] = s
	}
	return out
}

// ApplyRemote stores one remote update. The local session's own echo
// never mutates the map.
func (e *Engine) ApplyRemote(sid domain.SessionID, state domain.MediaState) {
	if sid == e.sessionID {
		log.Debug().Str("module", "media").Msg("own media echo suppressed")
		return
	}
	e.mu.Lock()
	e.remote[sid] = state
	e.mu.Unlock()
}

// ApplyBulk replaces the whole remote map from a sync.media payload,
// excluding the local session's own entry. Empty payloads are ignored.
func (e *Engine) ApplyBulk(states map[domain.SessionID]domain.MediaState) {
	if len(states) == 0 {
		return
	}
	next := make(map[domain.SessionID]domain.MediaState, len(states))
	for sid, s := range states {
		if sid == e.sessionID {
			continue
		}
		next[sid] = s
	}
	e.mu.Lock()
	e.remote = next
	e.mu.Unlock()
}

// Forget drops one remote entry, e.g. after the SFU reports the peer gone.
func (e *Engine) Forget(sid domain.SessionID) {
	e.mu.Lock()
	delete(e.remote, sid)
	e.mu.Unlock()
}

func (e *Engine) broadcast(state domain.MediaState) {
	if !e.ch.Connected() {
		return
	}
	_ = e.ch.Send(domain.MediaControlEvent{
		Type:      domain.EventMediaControl,
		SessionID: e.sessionID,
		Media:     state,
	})
}

func (e *Engine) handleFrame(eventType string, data []byte) {
	switch eventType {
	case domain.EventMediaControl:
		var ev domain.MediaControlEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("bad media control payload")
			return
		}
		e.ApplyRemote(ev.SessionID, ev.Media)
	case domain.EventSyncMedia:
		var ev domain.SyncMediaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("bad sync payload")
			return
		}
		e.ApplyBulk(ev.States)
	default:
		log.Warn().Str("module", "media").Str("type", eventType).Msg("unknown media frame")
	}
}
