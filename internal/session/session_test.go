package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Panos61/videocall-app-client-sub000/internal/config"
	"github.com/Panos61/videocall-app-client-sub000/internal/devserver"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
	"github.com/Panos61/videocall-app-client-sub000/internal/sfu"
)

type fixture struct {
	store *devserver.Store
	hubs  *devserver.Hubs
	sfu   *sfu.FakeClient
	sess  *Session

	local domain.Participant
	peer  domain.Participant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := devserver.NewStore()
	store.CreateRoom("r1", "standup")
	hubs := devserver.NewHubs()
	router := devserver.SetupRouter(store, hubs, devserver.Options{Mode: "release"})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	local := devserver.NewParticipant("alice")
	peer := devserver.NewParticipant("bob")
	store.AddParticipant("r1", local, true)
	store.AddParticipant("r1", peer, true)
	store.SetHost("r1", local.ID)

	fake := sfu.NewFakeClient()

	cfg := &config.Config{
		APIBase:       ts.URL + "/api",
		WSBase:        "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws",
		SFUURL:        "http://sfu.invalid/session",
		RoomID:        "r1",
		AuthToken:     string(local.SessionID),
		Username:      "alice",
		SessionID:     string(local.SessionID),
		SettleDelay:   30 * time.Millisecond,
		ReactionTTL:   60 * time.Millisecond,
		RaisedHandTTL: 120 * time.Millisecond,
		DialTimeout:   2 * time.Second,
		WriteTimeout:  2 * time.Second,
		HTTPTimeout:   2 * time.Second,
		SendBuffer:    32,
	}

	sess := New(cfg, fake)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Close)

	return &fixture{store: store, hubs: hubs, sfu: fake, sess: sess, local: local, peer: peer}
}

func TestStartResolvesLocalParticipant(t *testing.T) {
	f := newFixture(t)

	v := f.sess.View()
	require.NotNil(t, v.Local)
	require.Equal(t, "alice", v.Local.Username)
	require.True(t, v.IsHost)
	require.Empty(t, v.Peers)

	require.True(t, f.sess.Media().Connected())
	require.True(t, f.sess.Users().Connected())
	require.True(t, f.sess.System().Connected())
	require.True(t, f.sess.Settings().Connected())
}

func TestSFUPeerBeforeDirectoryIsProvisional(t *testing.T) {
	f := newFixture(t)

	// The SFU knows a session the directory has never listed.
	f.sfu.EmitParticipantConnected("ghost-session")

	require.Eventually(t, func() bool {
		v := f.sess.View()
		return len(v.Peers) == 1 && v.Peers[0].Provisional()
	}, time.Second, 10*time.Millisecond)
}

func TestParticipantConnectedResolvesViaRefresh(t *testing.T) {
	f := newFixture(t)

	f.sfu.EmitParticipantConnected(f.peer.SessionID)

	require.Eventually(t, func() bool {
		v := f.sess.View()
		return len(v.Peers) == 1 &&
			!v.Peers[0].Provisional() &&
			v.Peers[0].Participant.Username == "bob"
	}, time.Second, 10*time.Millisecond)
}

func TestParticipantDisconnectedRefreshesAfterSettleDelay(t *testing.T) {
	f := newFixture(t)

	f.sfu.EmitParticipantConnected(f.peer.SessionID)
	require.Eventually(t, func() bool {
		return len(f.sess.View().Peers) == 1
	}, time.Second, 10*time.Millisecond)

	// Absence on refresh is the deletion signal.
	f.store.RemoveParticipant("r1", f.peer.SessionID)
	f.sfu.EmitParticipantDisconnected(f.peer.SessionID)

	require.Eventually(t, func() bool {
		v := f.sess.View()
		return len(v.Peers) == 0 && f.sess.Directory().Snapshot().Resolve(f.peer.SessionID) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestHostHandoverKeepsSingleHost(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.sess.View().IsHost)

	// Server hands the host role to bob, then announces it.
	f.store.SetHost("r1", f.peer.ID)
	require.NoError(t, f.hubs.Broadcast("r1", "system-events", domain.HostUpdatedEvent{
		Type:      domain.EventHostUpdated,
		NewHostID: f.peer.ID,
		Timestamp: time.Now().Unix(),
	}))

	require.Eventually(t, func() bool {
		if f.sess.View().IsHost {
			return false
		}
		snap := f.sess.Directory().Snapshot()
		hosts := 0
		for _, p := range snap.All {
			if p.IsHost {
				hosts++
			}
		}
		return hosts == 1 && snap.Host().ID == f.peer.ID
	}, time.Second, 10*time.Millisecond)

	require.NotNil(t, f.sess.System().LatestHostUpdate())
}

func TestRoomKilledLeavesChannelsAndTimersAlone(t *testing.T) {
	f := newFixture(t)

	// Three raised hands are pending when the room dies.
	for _, name := range []string{"a", "b", "c"} {
		f.sess.Users().Dispatch(domain.EventRaisedHandSent, marshal(t, domain.RaisedHandEvent{
			Type: domain.EventRaisedHandSent, RaisedHand: true, Username: name,
		}))
	}
	require.Len(t, f.sess.Users().RaisedHands(), 3)

	// The server ends the call, then announces it.
	f.store.KillRoom("r1")
	require.NoError(t, f.hubs.Broadcast("r1", "system-events", domain.RoomKilledEvent{
		Type: domain.EventRoomKilled, Timestamp: time.Now().Unix(),
	}))

	require.Eventually(t, func() bool {
		return f.sess.System().RoomKilled()
	}, time.Second, 10*time.Millisecond)

	cs, err := f.sess.Directory().API().CallState(context.Background(), "r1")
	require.NoError(t, err)
	require.False(t, cs.IsActive)

	// The kill is terminal for the view, not the channels, and the
	// pending entries still expire on their own schedule.
	require.True(t, f.sess.System().Connected())
	require.Len(t, f.sess.Users().RaisedHands(), 3)
	require.Eventually(t, func() bool {
		return len(f.sess.Users().RaisedHands()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestUserEventsRoundTripThroughServer(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sess.Users().SendReaction("clap"))
	require.Eventually(t, func() bool {
		rs := f.sess.Users().Reactions()
		return len(rs) == 1 && rs[0].Kind == "clap" && rs[0].Username == "alice"
	}, time.Second, 10*time.Millisecond)
}

func TestMediaGossipRoundTripSuppressesOwnEcho(t *testing.T) {
	f := newFixture(t)

	// The devserver echoes media frames back to the sender; the
	// engine's own state must never land in the remote map.
	f.sess.Media().SetAudio(true)
	time.Sleep(100 * time.Millisecond)
	_, ok := f.sess.Media().Remote(f.sess.SessionID())
	require.False(t, ok)

	// A peer's gossip lands normally.
	require.NoError(t, f.hubs.Broadcast("r1", "media", domain.MediaControlEvent{
		Type:      domain.EventMediaControl,
		SessionID: f.peer.SessionID,
		Media:     domain.MediaState{Audio: true, Video: true},
	}))
	require.Eventually(t, func() bool {
		got, ok := f.sess.Media().Remote(f.peer.SessionID)
		return ok && got.Audio && got.Video
	}, time.Second, 10*time.Millisecond)
}

func TestSettingsBroadcastReachesSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.hubs.Broadcast("r1", "settings", domain.SettingsEvent{
		Type:     domain.EventSettingsUpdated,
		Settings: domain.RoomSettings{VideoQuality: "1080p", NoiseSuppression: true},
	}))
	require.Eventually(t, func() bool {
		return f.sess.Settings().Current().VideoQuality == "1080p"
	}, time.Second, 10*time.Millisecond)
}

func TestActiveSpeakersFlowIntoView(t *testing.T) {
	f := newFixture(t)

	f.sfu.EmitActiveSpeakers([]domain.SessionID{f.peer.SessionID})
	v := f.sess.View()
	require.Equal(t, []domain.SessionID{f.peer.SessionID}, v.Speakers)
}

func TestTrackReferencesFollowSubscribeLifecycle(t *testing.T) {
	f := newFixture(t)

	ref := sfu.TrackReference{ParticipantIdentity: f.peer.SessionID, Kind: domain.TrackKindVideo}
	f.sfu.EmitTrackSubscribed(ref)
	require.Len(t, f.sess.Tracks(), 1)

	f.sfu.EmitTrackUnsubscribed(ref)
	require.Empty(t, f.sess.Tracks())
}

func TestViewAfterCloseFailsLoudly(t *testing.T) {
	f := newFixture(t)

	f.sess.Close()
	require.Panics(t, func() { _ = f.sess.View() })

	// Close stays idempotent.
	f.sess.Close()
	select {
	case <-f.sess.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
