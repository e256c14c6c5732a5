package devserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

func TestNewParticipantEnforcesUsernameRules(t *testing.T) {
	p := NewParticipant("bob")
	require.NotEmpty(t, p.ID)
	require.NotEmpty(t, p.SessionID)
	require.Equal(t, "bob", p.Username)

	require.Panics(t, func() { NewParticipant("") })
}

func TestKillRoomDeactivatesCall(t *testing.T) {
	store := NewStore()
	store.CreateRoom("r1", domain.RoomName("standup"))

	r, ok := store.Room("r1")
	require.True(t, ok)
	require.True(t, r.Call.IsActive)

	store.KillRoom("r1")
	r, ok = store.Room("r1")
	require.True(t, ok)
	require.False(t, r.Call.IsActive)
}
