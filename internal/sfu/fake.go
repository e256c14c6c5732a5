package sfu

import (
	"context"
	"sync"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// FakeClient is a scriptable SFU used by tests and the CLI's offline
// mode. Emit* methods fire the bound callbacks synchronously.
type FakeClient struct {
	mu        sync.Mutex
	cb        Callbacks
	live      map[domain.SessionID]struct{}
	connected bool

	ConnectedURL   string
	ConnectedToken string

	controls FakeControls
}

type FakeControls struct {
	mu          sync.Mutex
	camera      bool
	microphone  bool
	screenShare bool
}

func (c *FakeControls) Camera() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

func (c *FakeControls) Microphone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.microphone
}

func (c *FakeControls) ScreenShare() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenShare
}

func NewFakeClient() *FakeClient {
	return &FakeClient{live: make(map[domain.SessionID]struct{})}
}

func (f *FakeClient) Bind(cb Callbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

func (f *FakeClient) Connect(_ context.Context, url, token string) error {
	f.mu.Lock()
	f.connected = true
	f.ConnectedURL = url
	f.ConnectedToken = token
	cb := f.cb
	f.mu.Unlock()
	if cb.OnConnected != nil {
		cb.OnConnected()
	}
	return nil
}

func (f *FakeClient) Close() {
	f.mu.Lock()
	wasConnected := f.connected
	f.connected = false
	cb := f.cb
	f.mu.Unlock()
	if wasConnected && cb.OnDisconnected != nil {
		cb.OnDisconnected()
	}
}

func (f *FakeClient) Local() LocalControls { return &f.controls }

func (f *FakeClient) LiveSessions() []domain.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionID, 0, len(f.live))
	for sid := range f.live {
		out = append(out, sid)
	}
	return out
}

func (f *FakeClient) EmitParticipantConnected(sid domain.SessionID) {
	f.mu.Lock()
	f.live[sid] = struct{}{}
	cb := f.cb
	f.mu.Unlock()
	if cb.OnParticipantConnected != nil {
		cb.OnParticipantConnected(sid)
	}
}

func (f *FakeClient) EmitParticipantDisconnected(sid domain.SessionID) {
	f.mu.Lock()
	delete(f.live, sid)
	cb := f.cb
	f.mu.Unlock()
	if cb.OnParticipantDisconnected != nil {
		cb.OnParticipantDisconnected(sid)
	}
}

func (f *FakeClient) EmitTrackSubscribed(ref TrackReference) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnTrackSubscribed != nil {
		cb.OnTrackSubscribed(ref)
	}
}

func (f *FakeClient) EmitTrackUnsubscribed(ref TrackReference) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnTrackUnsubscribed != nil {
		cb.OnTrackUnsubscribed(ref)
	}
}

func (f *FakeClient) EmitActiveSpeakers(sids []domain.SessionID) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnActiveSpeakersChanged != nil {
		cb.OnActiveSpeakersChanged(sids)
	}
}

func (c *FakeControls) SetCameraEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = enabled
	return nil
}

func (c *FakeControls) SetMicrophoneEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.microphone = enabled
	return nil
}

func (c *FakeControls) SetScreenShareEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screenShare = enabled
	return nil
}
