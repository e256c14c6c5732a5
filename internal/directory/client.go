// Package directory holds the pull-based authoritative participant
// snapshot and the HTTP API client that feeds it.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// API is the room service HTTP boundary. Responses are snapshots; the
// server is authoritative and the client never writes through it.
type API struct {
	base  string
	token string
	hc    *http.Client
}

func NewAPI(base, token string, timeout time.Duration) *API {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &API{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: timeout},
	}
}

func (a *API) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) postJSON(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, strings.NewReader(string(b)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Participants fetches the full membership plus the in-call subset.
func (a *API) Participants(ctx context.Context, roomID string) (Snapshot, error) {
	var body struct {
		Participants       []domain.Participant `json:"participants"`
		ParticipantsInCall []domain.Participant `json:"participants_in_call"`
	}
	if err := a.getJSON(ctx, "/rooms/"+roomID+"/participants", &body); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		All:    body.Participants,
		InCall: body.ParticipantsInCall,
		Taken:  time.Now(),
	}, nil
}

// Me resolves the caller's own participant record.
func (a *API) Me(ctx context.Context, roomID string) (domain.Participant, error) {
	var p domain.Participant
	err := a.getJSON(ctx, "/rooms/"+roomID+"/me", &p)
	return p, err
}

func (a *API) RoomInfo(ctx context.Context, roomID string) (domain.RoomInfo, error) {
	var ri domain.RoomInfo
	err := a.getJSON(ctx, "/rooms/"+roomID, &ri)
	return ri, err
}

func (a *API) CallState(ctx context.Context, roomID string) (domain.CallState, error) {
	var cs domain.CallState
	err := a.getJSON(ctx, "/rooms/"+roomID+"/call", &cs)
	return cs, err
}

// SFUToken exchanges the session for an SFU join token.
func (a *API) SFUToken(ctx context.Context, roomID string, sid domain.SessionID) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	req := struct {
		SessionID domain.SessionID `json:"session_id"`
	}{SessionID: sid}
	if err := a.postJSON(ctx, "/rooms/"+roomID+"/token", req, &body); err != nil {
		return "", err
	}
	return body.Token, nil
}
