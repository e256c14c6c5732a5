// Package reconcile merges the directory snapshot with the SFU's live
// identity set into the single view the application renders. It is
// read-only fan-in: no input is ever mutated, so deriving a view on
// every change is side-effect free.
package reconcile

import (
	"sort"

	"github.com/Panos61/videocall-app-client-sub000/internal/directory"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// Peer is one SFU-reported remote session. Participant is nil while
// the directory has not caught up yet; callers render a provisional
// state for those instead of failing.
type Peer struct {
	SessionID   domain.SessionID
	Participant *domain.Participant
}

// Provisional reports whether the peer still lacks a directory record.
func (p Peer) Provisional() bool { return p.Participant == nil }

// View is the rendered room state.
type View struct {
	Local *domain.Participant
	// IsHost defaults safe: never host while the local record is
	// unresolved.
	IsHost   bool
	Peers    []Peer
	Speakers []domain.SessionID
}

// RemoteSessions filters the SFU live set down to remote peers.
func RemoteSessions(live []domain.SessionID, local domain.SessionID) []domain.SessionID {
	out := make([]domain.SessionID, 0, len(live))
	for _, sid := range live {
		if sid == local {
			continue
		}
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Derive computes the view from the current inputs.
func Derive(snap directory.Snapshot, live []domain.SessionID, speakers []domain.SessionID, local domain.SessionID) View {
	v := View{Speakers: speakers}

	v.Local = snap.Resolve(local)
	if v.Local != nil {
		v.IsHost = v.Local.IsHost
	}

	for _, sid := range RemoteSessions(live, local) {
		v.Peers = append(v.Peers, Peer{
			SessionID:   sid,
			Participant: snap.Resolve(sid),
		})
	}
	return v
}
