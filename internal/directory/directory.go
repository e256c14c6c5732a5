package directory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// Snapshot is one directory response. Valid until the next refresh;
// staleness is expected and resolved downstream, never an error.
type Snapshot struct {
	All    []domain.Participant
	InCall []domain.Participant
	Taken  time.Time
}

// Resolve returns the first participant matching sid, or nil if the
// directory has not caught up to that session yet.
func (s Snapshot) Resolve(sid domain.SessionID) *domain.Participant {
	for i := range s.All {
		if s.All[i].SessionID == sid {
			p := s.All[i]
			return &p
		}
	}
	return nil
}

// Host returns the participant currently flagged as host, if any.
func (s Snapshot) Host() *domain.Participant {
	for i := range s.All {
		if s.All[i].IsHost {
			p := s.All[i]
			return &p
		}
	}
	return nil
}

// Directory caches the latest membership snapshot for one room.
// Refreshes replace the snapshot wholesale; when refreshes race, the
// most recently issued request wins regardless of completion order.
// A refresh finishing after Close must not touch state.
type Directory struct {
	api    *API
	roomID string

	alive  atomic.Bool
	reqSeq atomic.Uint64

	mu         sync.RWMutex
	snap       Snapshot
	me         *domain.Participant
	appliedSeq uint64
	meSeq      uint64
}

func New(api *API, roomID string) *Directory {
	d := &Directory{api: api, roomID: roomID}
	d.alive.Store(true)
	return d
}

// Refresh pulls the membership snapshot. Safe to call repeatedly and
// concurrently; see type docs for the race policy.
func (d *Directory) Refresh(ctx context.Context) (Snapshot, error) {
	seq := d.reqSeq.Inc()
	snap, err := d.api.Participants(ctx, d.roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "directory").Str("room", d.roomID).Msg("refresh failed")
		return Snapshot{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive.Load() {
		// Late response after teardown: ignorable.
		return snap, nil
	}
	if seq < d.appliedSeq {
		log.Debug().Str("module", "directory").Msg("stale refresh response discarded")
		return snap, nil
	}
	d.appliedSeq = seq
	d.snap = snap
	log.Debug().Str("module", "directory").Int("all", len(snap.All)).Int("in_call", len(snap.InCall)).Msg("snapshot replaced")
	return snap, nil
}

// RefreshMe re-fetches the caller's own record. Triggered alongside
// Refresh whenever host assignment may have changed.
func (d *Directory) RefreshMe(ctx context.Context) (*domain.Participant, error) {
	seq := d.reqSeq.Inc()
	me, err := d.api.Me(ctx, d.roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "directory").Msg("me refresh failed")
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive.Load() || seq < d.meSeq {
		return &me, nil
	}
	d.meSeq = seq
	cp := me
	d.me = &cp
	return &me, nil
}

func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

func (d *Directory) Me() *domain.Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.me == nil {
		return nil
	}
	cp := *d.me
	return &cp
}

func (d *Directory) API() *API { return d.api }

// Close marks the directory dead; in-flight refreshes become no-ops.
func (d *Directory) Close() { d.alive.Store(false) }
