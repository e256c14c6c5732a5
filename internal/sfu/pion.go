package sfu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// PionClient connects to the SFU over a single peer connection. Media
// arrives as remote tracks; membership and speaker announcements
// arrive on a server-created "events" data channel, and local control
// intents leave on a client-created "control" data channel.
//
// The join handshake is a plain HTTP offer/answer exchange against the
// SFU endpoint, authorized by the join token.
type PionClient struct {
	cfg webrtc.Configuration
	hc  *http.Client

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	cb       Callbacks
	control  *webrtc.DataChannel
	live     map[domain.SessionID]struct{}
	tracks   map[string]TrackReference
	cancel   context.CancelFunc
	controls *pionControls
}

func NewPionClient(cfg webrtc.Configuration) *PionClient {
	c := &PionClient{
		cfg:    cfg,
		hc:     &http.Client{},
		live:   make(map[domain.SessionID]struct{}),
		tracks: make(map[string]TrackReference),
	}
	c.controls = &pionControls{client: c}
	return c
}

func (c *PionClient) Bind(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

func (c *PionClient) Local() LocalControls { return c.controls }

func (c *PionClient) Connect(ctx context.Context, url, token string) error {
	pc, err := webrtc.NewPeerConnection(c.cfg)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.pc != nil {
		_ = c.pc.Close()
	}
	c.pc = pc
	c.cancel = cancel
	cb := c.cb
	c.mu.Unlock()

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "sfu").Str("peer_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if cb.OnConnected != nil {
				cb.OnConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			cancel()
			if cb.OnDisconnected != nil {
				cb.OnDisconnected()
			}
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "sfu").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		ref := TrackReference{
			Track:               track,
			ParticipantIdentity: domain.SessionID(track.StreamID()),
			Kind:                trackKind(track),
		}
		c.mu.Lock()
		c.tracks[track.ID()] = ref
		c.mu.Unlock()
		if cb.OnTrackSubscribed != nil {
			cb.OnTrackSubscribed(ref)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "events" {
			return
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			c.handleServerEvent(msg.Data)
		})
	})

	control, err := pc.CreateDataChannel("control", nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("create control channel: %w", err)
	}
	control.OnOpen(func() {
		b, _ := json.Marshal(domain.AuthFrame{Type: domain.EventAuth, Token: token})
		if err := control.SendText(string(b)); err != nil {
			log.Warn().Err(err).Str("module", "sfu").Msg("auth send failed")
		}
	})
	c.mu.Lock()
	c.control = control
	c.mu.Unlock()

	// Receive-only transceivers: the SFU forwards, we subscribe.
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete

	answer, err := c.exchange(ctx, url, token, pc.LocalDescription().SDP)
	if err != nil {
		_ = pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// exchange POSTs the SDP offer and returns the SDP answer.
func (c *PionClient) exchange(ctx context.Context, url, token, offerSDP string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(offerSDP)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("sdp exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sdp exchange: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// handleServerEvent decodes one frame off the "events" data channel.
func (c *PionClient) handleServerEvent(data []byte) {
	var env struct {
		Type      string             `json:"type"`
		SessionID domain.SessionID   `json:"session_id"`
		Sessions  []domain.SessionID `json:"sessions"`
		TrackSID  string             `json:"track_sid"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "sfu").Msg("bad server event dropped")
		return
	}

	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()

	switch env.Type {
	case "participant.connected":
		c.mu.Lock()
		c.live[env.SessionID] = struct{}{}
		c.mu.Unlock()
		if cb.OnParticipantConnected != nil {
			cb.OnParticipantConnected(env.SessionID)
		}
	case "participant.disconnected":
		c.mu.Lock()
		delete(c.live, env.SessionID)
		c.mu.Unlock()
		if cb.OnParticipantDisconnected != nil {
			cb.OnParticipantDisconnected(env.SessionID)
		}
	case "track.unpublished":
		c.mu.Lock()
		ref, ok := c.tracks[env.TrackSID]
		delete(c.tracks, env.TrackSID)
		c.mu.Unlock()
		if ok && cb.OnTrackUnsubscribed != nil {
			cb.OnTrackUnsubscribed(ref)
		}
	case "speakers.changed":
		if cb.OnActiveSpeakersChanged != nil {
			cb.OnActiveSpeakersChanged(env.Sessions)
		}
	default:
		log.Warn().Str("module", "sfu").Str("type", env.Type).Msg("unknown server event")
	}
}

func (c *PionClient) LiveSessions() []domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SessionID, 0, len(c.live))
	for sid := range c.live {
		out = append(out, sid)
	}
	return out
}

func (c *PionClient) Close() {
	c.mu.Lock()
	pc := c.pc
	cancel := c.cancel
	c.pc = nil
	c.control = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "sfu").Msg("close error")
		} else {
			log.Info().Str("module", "sfu").Msg("closed")
		}
	}
}

func (c *PionClient) sendControl(v any) error {
	c.mu.Lock()
	control := c.control
	c.mu.Unlock()
	if control == nil {
		return fmt.Errorf("control channel not open")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return control.SendText(string(b))
}

func trackKind(track *webrtc.TrackRemote) domain.TrackKind {
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		return domain.TrackKindVideo
	}
	return domain.TrackKindAudio
}

// pionControls signals publish intent over the control channel; the
// SFU mutes or unmutes the forwarded tracks accordingly.
type pionControls struct {
	client *PionClient
}

type controlFrame struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

func (p *pionControls) SetCameraEnabled(enabled bool) error {
	return p.client.sendControl(controlFrame{Type: "media.toggle", Kind: "camera", Enabled: enabled})
}

func (p *pionControls) SetMicrophoneEnabled(enabled bool) error {
	return p.client.sendControl(controlFrame{Type: "media.toggle", Kind: "microphone", Enabled: enabled})
}

func (p *pionControls) SetScreenShareEnabled(enabled bool) error {
	return p.client.sendControl(controlFrame{Type: "media.toggle", Kind: "screen_share", Enabled: enabled})
}
