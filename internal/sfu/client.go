// Package sfu is the boundary to the media-routing service. The SFU is
// authoritative for track transport, not for application identity: it
// knows session identifiers, never participant records.
package sfu

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// TrackReference points at an SFU-owned track. The sync layer attaches
// and detaches it; it never owns the track lifecycle.
type TrackReference struct {
	Track               *webrtc.TrackRemote
	ParticipantIdentity domain.SessionID
	Kind                domain.TrackKind
}

// Callbacks is the closed set of events the sync layer consumes.
// Unset fields are simply not fired.
type Callbacks struct {
	OnConnected               func()
	OnDisconnected            func()
	OnParticipantConnected    func(identity domain.SessionID)
	OnParticipantDisconnected func(identity domain.SessionID)
	OnTrackSubscribed         func(ref TrackReference)
	OnTrackUnsubscribed       func(ref TrackReference)
	OnActiveSpeakersChanged   func(identities []domain.SessionID)
}

// LocalControls drives the local participant's publishing.
type LocalControls interface {
	SetCameraEnabled(enabled bool) error
	SetMicrophoneEnabled(enabled bool) error
	SetScreenShareEnabled(enabled bool) error
}

// Client is the black-box SFU connection.
type Client interface {
	// Bind registers callbacks. Must be called before Connect.
	Bind(cb Callbacks)
	Connect(ctx context.Context, url, token string) error
	Close()
	Local() LocalControls
	// LiveSessions lists the session identities the SFU currently
	// reports as connected, local excluded.
	LiveSessions() []domain.SessionID
}
