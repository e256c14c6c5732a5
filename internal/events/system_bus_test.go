package events

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

func newTestSystemBus() *SystemBus {
	return NewSystemBus(channel.Options{Name: "events.system.test"})
}

func TestHostEventsInvalidateMembership(t *testing.T) {
	b := newTestSystemBus()
	staleCount := 0
	b.OnMembershipStale(func() { staleCount++ })

	b.Dispatch(domain.EventHostLeft, mustMarshal(t, domain.HostLeftEvent{
		Type: domain.EventHostLeft, PreviousHostID: "p1", Timestamp: 100,
	}))
	require.Equal(t, 1, staleCount)
	require.NotNil(t, b.LatestHostLeft())
	require.Equal(t, domain.ParticipantID("p1"), b.LatestHostLeft().Event.PreviousHostID)

	b.Dispatch(domain.EventHostUpdated, mustMarshal(t, domain.HostUpdatedEvent{
		Type: domain.EventHostUpdated, NewHostID: "p2", Timestamp: 101,
	}))
	require.Equal(t, 2, staleCount)
	require.Equal(t, domain.ParticipantID("p2"), b.LatestHostUpdate().Event.NewHostID)

	// Latest cells overwrite, never append.
	b.Dispatch(domain.EventHostUpdated, mustMarshal(t, domain.HostUpdatedEvent{
		Type: domain.EventHostUpdated, NewHostID: "p3", Timestamp: 102,
	}))
	require.Equal(t, domain.ParticipantID("p3"), b.LatestHostUpdate().Event.NewHostID)
}

func TestRoomKilledIsTerminalForViewOnly(t *testing.T) {
	b := newTestSystemBus()
	killed := false
	b.OnRoomKilled(func() { killed = true })

	require.False(t, b.RoomKilled())
	b.Dispatch(domain.EventRoomKilled, mustMarshal(t, domain.RoomKilledEvent{
		Type: domain.EventRoomKilled, Timestamp: 200,
	}))
	require.True(t, killed)
	require.True(t, b.RoomKilled())
	require.NotNil(t, b.LatestRoomKilled())
	// Closing the channel stays a caller decision.
	require.False(t, b.Connected())
}

func TestHistoryRingIsBounded(t *testing.T) {
	b := newTestSystemBus()

	for i := 0; i < ringSize+5; i++ {
		b.Dispatch(domain.EventHostUpdated, mustMarshal(t, domain.HostUpdatedEvent{
			Type: domain.EventHostUpdated, NewHostID: domain.ParticipantID(fmt.Sprintf("p%d", i)), Timestamp: int64(i),
		}))
	}

	hist := b.History()
	require.Len(t, hist, ringSize)
	// Oldest entries fell off the front.
	var first domain.HostUpdatedEvent
	require.NoError(t, json.Unmarshal(hist[0].Data, &first))
	require.Equal(t, domain.ParticipantID("p5"), first.NewHostID)
}

func TestRoomKilledDoesNotClearUserEvents(t *testing.T) {
	system := newTestSystemBus()
	user := newTestUserBus(nil)

	for _, name := range []string{"a", "b", "c"} {
		user.Dispatch(domain.EventRaisedHandSent, mustMarshal(t, domain.RaisedHandEvent{
			Type: domain.EventRaisedHandSent, RaisedHand: true, Username: name,
		}))
	}
	require.Len(t, user.RaisedHands(), 3)

	system.Dispatch(domain.EventRoomKilled, mustMarshal(t, domain.RoomKilledEvent{
		Type: domain.EventRoomKilled, Timestamp: 300,
	}))

	// No implicit clear: the entries survive the kill and still expire
	// on their own schedule.
	require.Len(t, user.RaisedHands(), 3)
	require.Eventually(t, func() bool {
		return len(user.RaisedHands()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMalformedSystemEventDropped(t *testing.T) {
	b := newTestSystemBus()
	b.Dispatch(domain.EventHostUpdated, []byte("{broken"))
	require.Nil(t, b.LatestHostUpdate())
}
