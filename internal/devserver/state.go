// Package devserver is a local stand-in for the room backend: the
// HTTP snapshot API plus the four push routes, with just enough state
// to develop and test the client against.
package devserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

type Room struct {
	Info         domain.RoomInfo
	Call         domain.CallState
	Participants []domain.Participant
	InCall       map[domain.SessionID]bool
}

// Store is the in-memory room registry. Tests mutate it directly to
// script membership changes.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

func (s *Store) CreateRoom(id string, name domain.RoomName) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room{
		Info: domain.RoomInfo{
			ID:        domain.RoomID(id),
			Name:      name,
			CreatedAt: time.Now(),
		},
		Call:   domain.CallState{IsActive: true, StartedAt: time.Now()},
		InCall: make(map[domain.SessionID]bool),
	}
	s.rooms[id] = r
	return r
}

func (s *Store) Room(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

func (s *Store) AddParticipant(roomID string, p domain.Participant, inCall bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for i := range r.Participants {
		if r.Participants[i].SessionID == p.SessionID {
			r.Participants[i] = p
			r.InCall[p.SessionID] = inCall
			return
		}
	}
	r.Participants = append(r.Participants, p)
	r.InCall[p.SessionID] = inCall
}

func (s *Store) RemoveParticipant(roomID string, sid domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for i := range r.Participants {
		if r.Participants[i].SessionID == sid {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			break
		}
	}
	delete(r.InCall, sid)
}

// SetHost moves the host flag so that exactly one participant holds it.
func (s *Store) SetHost(roomID string, pid domain.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	r.Info.HostID = pid
	for i := range r.Participants {
		r.Participants[i].IsHost = r.Participants[i].ID == pid
	}
}

func (s *Store) KillRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		r.Call.IsActive = false
	}
}

// snapshot returns copies safe to serialize without holding the lock.
func (s *Store) snapshot(roomID string) (all, inCall []domain.Participant, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, found := s.rooms[roomID]
	if !found {
		return nil, nil, false
	}
	all = make([]domain.Participant, len(r.Participants))
	copy(all, r.Participants)
	for _, p := range r.Participants {
		if r.InCall[p.SessionID] {
			inCall = append(inCall, p)
		}
	}
	return all, inCall, true
}

// NewParticipant builds a participant with generated identifiers, for
// fixtures and the CLI. Usernames go through the domain validation;
// an invalid one is a programming error here, so it panics.
func NewParticipant(username string) domain.Participant {
	p, err := domain.NewParticipant(
		domain.ParticipantID(uuid.NewString()),
		domain.SessionID(uuid.NewString()),
		username,
	)
	if err != nil {
		panic(err)
	}
	return *p
}
