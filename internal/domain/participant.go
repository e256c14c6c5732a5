// Package domain holds the entities shared across the client:
// participants, rooms, media state, and the wire event payloads.
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type (
	// ParticipantID survives reconnects of the same room membership.
	ParticipantID string
	// SessionID identifies one live transport connection. A reconnect
	// of the same person produces a new SessionID.
	SessionID string
)

// MediaState is the audio/video intent of one participant.
// Always replaced wholesale, never merged field-by-field.
type MediaState struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

type Participant struct {
	ID        ParticipantID `json:"id"`
	SessionID SessionID     `json:"session_id"`
	Username  string        `json:"username"`
	AvatarRef string        `json:"avatar"`
	IsHost    bool          `json:"is_host"`
	Media     MediaState    `json:"media"`
}

// NewParticipant validates the username and builds a participant
// record. Everything that mints participants goes through here so the
// username rules hold everywhere.
func NewParticipant(id ParticipantID, sid SessionID, username string) (*Participant, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Participant{ID: id, SessionID: sid, Username: username}, nil
}
