package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewParticipantValidatesUsername(t *testing.T) {
	p, err := NewParticipant("p1", "s1", "alice")
	require.NoError(t, err)
	require.Equal(t, ParticipantID("p1"), p.ID)
	require.Equal(t, SessionID("s1"), p.SessionID)
	require.Equal(t, "alice", p.Username)

	_, err = NewParticipant("p1", "s1", "")
	require.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewParticipant("p1", "s1", strings.Repeat("a", MaxUsernameLen+1))
	require.ErrorIs(t, err, ErrUsernameTooLong)

	_, err = NewParticipant("p1", "s1", strings.Repeat("a", MaxUsernameLen))
	require.NoError(t, err)
}
