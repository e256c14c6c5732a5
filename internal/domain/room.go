package domain

import "time"

type (
	RoomName string
	RoomID   string
)

type RoomInfo struct {
	ID        RoomID        `json:"id"`
	Name      RoomName      `json:"name"`
	HostID    ParticipantID `json:"host_id"`
	CreatedAt time.Time     `json:"created_at"`
}

// CallState reports whether a call is running inside the room.
type CallState struct {
	IsActive  bool      `json:"is_active"`
	StartedAt time.Time `json:"started_at"`
}

// RoomSettings is the host-controlled settings broadcast. The client
// only renders it; enforcement is server-side.
type RoomSettings struct {
	VideoQuality     string `json:"video_quality"`
	NoiseSuppression bool   `json:"noise_suppression"`
}
