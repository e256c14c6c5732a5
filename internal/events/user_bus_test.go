package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	single map[domain.SessionID]domain.MediaState
	bulk   []map[domain.SessionID]domain.MediaState
}

func newRecordingSink() *recordingSink {
	return &recordingSink{single: make(map[domain.SessionID]domain.MediaState)}
}

func (r *recordingSink) ApplyRemote(sid domain.SessionID, state domain.MediaState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.single[sid] = state
}

func (r *recordingSink) ApplyBulk(states map[domain.SessionID]domain.MediaState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulk = append(r.bulk, states)
}

func newTestUserBus(sink MediaSink) *UserBus {
	return NewUserBus(UserBusOptions{
		Channel:       channel.Options{Name: "events.user.test"},
		Username:      "alice",
		ReactionTTL:   60 * time.Millisecond,
		RaisedHandTTL: 120 * time.Millisecond,
	}, sink)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestReactionTTLsAreIndependent(t *testing.T) {
	b := newTestUserBus(nil)

	// Insert A, then B a while later: A must expire on its own clock
	// while B remains, and B expires on its own clock, not A's.
	b.Dispatch(domain.EventReactionSent, mustMarshal(t, domain.ReactionEvent{
		Type: domain.EventReactionSent, ReactionType: "clap", Username: "alice",
	}))
	time.Sleep(35 * time.Millisecond)
	b.Dispatch(domain.EventReactionSent, mustMarshal(t, domain.ReactionEvent{
		Type: domain.EventReactionSent, ReactionType: "wave", Username: "bob",
	}))
	require.Len(t, b.Reactions(), 2)

	require.Eventually(t, func() bool {
		rs := b.Reactions()
		return len(rs) == 1 && rs[0].Kind == "wave"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(b.Reactions()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRaisedHandRaiseAndLower(t *testing.T) {
	b := newTestUserBus(nil)

	b.Dispatch(domain.EventRaisedHandSent, mustMarshal(t, domain.RaisedHandEvent{
		Type: domain.EventRaisedHandSent, RaisedHand: true, Username: "bob",
	}))
	require.Len(t, b.RaisedHands(), 1)

	// Re-raising replaces the entry instead of stacking a second one.
	b.Dispatch(domain.EventRaisedHandSent, mustMarshal(t, domain.RaisedHandEvent{
		Type: domain.EventRaisedHandSent, RaisedHand: true, Username: "bob",
	}))
	require.Len(t, b.RaisedHands(), 1)

	b.Dispatch(domain.EventRaisedHandSent, mustMarshal(t, domain.RaisedHandEvent{
		Type: domain.EventRaisedHandSent, RaisedHand: false, Username: "bob",
	}))
	require.Empty(t, b.RaisedHands())
}

func TestRaisedHandExpires(t *testing.T) {
	b := newTestUserBus(nil)

	b.Dispatch(domain.EventRaisedHandSent, mustMarshal(t, domain.RaisedHandEvent{
		Type: domain.EventRaisedHandSent, RaisedHand: true, Username: "bob",
	}))
	require.Eventually(t, func() bool {
		return len(b.RaisedHands()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestScreenShareKeyedByTrack(t *testing.T) {
	b := newTestUserBus(nil)

	b.Dispatch(domain.EventShareScreenStarted, mustMarshal(t, domain.ShareScreenEvent{
		Type: domain.EventShareScreenStarted, TrackSID: "tr-1", Username: "bob",
	}))
	shares := b.ScreenShares()
	require.Len(t, shares, 1)
	require.Equal(t, "bob", shares[0].Username)

	// Ending a different track leaves the record alone.
	b.Dispatch(domain.EventShareScreenEnded, mustMarshal(t, domain.ShareScreenEvent{
		Type: domain.EventShareScreenEnded, TrackSID: "tr-2",
	}))
	require.Len(t, b.ScreenShares(), 1)

	b.Dispatch(domain.EventShareScreenEnded, mustMarshal(t, domain.ShareScreenEvent{
		Type: domain.EventShareScreenEnded, TrackSID: "tr-1",
	}))
	require.Empty(t, b.ScreenShares())
}

func TestMediaGossipForwardedToSink(t *testing.T) {
	sink := newRecordingSink()
	b := newTestUserBus(sink)

	b.Dispatch(domain.EventMediaControl, mustMarshal(t, domain.MediaControlEvent{
		Type: domain.EventMediaControl, SessionID: "peer-1",
		Media: domain.MediaState{Audio: true},
	}))
	sink.mu.Lock()
	require.Equal(t, domain.MediaState{Audio: true}, sink.single["peer-1"])
	sink.mu.Unlock()

	b.Dispatch(domain.EventSyncMedia, mustMarshal(t, domain.SyncMediaEvent{
		Type:   domain.EventSyncMedia,
		States: map[domain.SessionID]domain.MediaState{"peer-2": {Video: true}},
	}))
	sink.mu.Lock()
	require.Len(t, sink.bulk, 1)
	sink.mu.Unlock()
}

func TestMalformedUserEventIsDropped(t *testing.T) {
	b := newTestUserBus(nil)
	b.Dispatch(domain.EventReactionSent, []byte("{broken"))
	require.Empty(t, b.Reactions())
}

func TestSendWhileDisconnectedIsNonFatal(t *testing.T) {
	b := newTestUserBus(nil)
	require.ErrorIs(t, b.SendReaction("clap"), channel.ErrNotOpen)
	require.ErrorIs(t, b.SendRaisedHand(true), channel.ErrNotOpen)
	require.ErrorIs(t, b.SendShareScreenStarted("tr-1"), channel.ErrNotOpen)
}
