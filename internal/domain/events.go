package domain

// Frame type discriminators. Every inbound frame carries one of these
// in its "type" field; unknown types are dropped by the dispatcher.
const (
	EventAuth = "auth"

	EventReactionSent       = "reaction.sent"
	EventRaisedHandSent     = "raised_hand.sent"
	EventShareScreenStarted = "share_screen.started"
	EventShareScreenEnded   = "share_screen.ended"
	EventMediaControl       = "media.control.updated"
	EventSyncMedia          = "sync.media"

	EventHostLeft    = "host.left"
	EventHostUpdated = "host.updated"
	EventRoomKilled  = "room.killed"

	EventSettingsUpdated = "settings.updated"
)

// Envelope is the minimal shape shared by every frame.
type Envelope struct {
	Type string `json:"type"`
}

// AuthFrame is sent first on the media route, right after open.
type AuthFrame struct {
	Type      string    `json:"type"`
	Token     string    `json:"token"`
	SessionID SessionID `json:"session_id"`
}

type ReactionEvent struct {
	Type         string `json:"type"`
	ReactionType string `json:"reaction_type"`
	Username     string `json:"username"`
}

type RaisedHandEvent struct {
	Type       string `json:"type"`
	RaisedHand bool   `json:"raised_hand"`
	Username   string `json:"username"`
}

type ShareScreenEvent struct {
	Type     string `json:"type"`
	TrackSID string `json:"track_sid"`
	Username string `json:"username,omitempty"`
}

type MediaControlEvent struct {
	Type      string     `json:"type"`
	SessionID SessionID  `json:"session_id"`
	Media     MediaState `json:"media"`
}

// SyncMediaEvent is the bulk form: the full remote-state map as the
// sender knows it.
type SyncMediaEvent struct {
	Type   string                   `json:"type"`
	States map[SessionID]MediaState `json:"states"`
}

type HostLeftEvent struct {
	Type           string        `json:"type"`
	PreviousHostID ParticipantID `json:"previous_host_id"`
	Timestamp      int64         `json:"timestamp"`
}

type HostUpdatedEvent struct {
	Type      string        `json:"type"`
	NewHostID ParticipantID `json:"new_host_id"`
	Timestamp int64         `json:"timestamp"`
}

type RoomKilledEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type SettingsEvent struct {
	Type     string       `json:"type"`
	Settings RoomSettings `json:"settings"`
}
