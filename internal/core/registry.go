package core

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dpetrov/couchsync/internal/domain"
)

// roomEntry is one live room: the membership set plus the playback
// state, sharing a single lock scope so nobody can observe a member
// of a room without a state.
type roomEntry struct {
	mu      sync.RWMutex
	dead    bool
	members map[*Session]struct{}
	state   domain.PlaybackState
}

// RoomInfo is a read-only view for the admin surfaces.
type RoomInfo struct {
	ID          string `json:"id"`
	MemberCount int    `json:"client_count"`
	Path        string `json:"path,omitempty"`
	Playing     bool   `json:"playing"`
}

// Registry maps room identifiers to live rooms. Rooms are created on
// first touch and dropped when their membership set empties; their
// playback state goes with them. Locking is per room, the outer map
// has its own lock, so unrelated rooms never serialize on each other.
type Registry struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock: clock,
		rooms: make(map[string]*roomEntry),
	}
}

func (r *Registry) getOrCreate(roomID string) *roomEntry {
	r.mu.RLock()
	e, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.rooms[roomID]; ok {
		return e
	}
	e = &roomEntry{
		members: make(map[*Session]struct{}),
		state:   domain.PlaybackState{PositionSetAt: r.clock.Now()},
	}
	r.rooms[roomID] = e
	log.Info().Str("module", "core.registry").Str("room", roomID).Msg("room created")
	return e
}

func (r *Registry) get(roomID string) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[roomID]
	return e, ok
}

// Join adds the session to its room, creating the room on first touch.
// An entry resolved before a concurrent last-leave GC may already be
// dead by the time the room lock is held; retry on a fresh entry so
// the session never lands in a room unreachable from the map.
func (r *Registry) Join(s *Session) {
	for {
		e := r.getOrCreate(s.Room())
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		e.members[s] = struct{}{}
		count := len(e.members)
		e.mu.Unlock()
		log.Info().Str("module", "core.registry").Str("room", s.Room()).
			Str("client", s.ClientID()).Int("members", count).Msg("session joined")
		return
	}
}

// Leave removes the session from its room and reports whether the
// membership set actually changed. Idempotent; racing close and error
// paths both call it. The room entry is dropped once empty.
func (r *Registry) Leave(s *Session) bool {
	e, ok := r.get(s.Room())
	if !ok {
		return false
	}

	e.mu.Lock()
	_, present := e.members[s]
	delete(e.members, s)
	count := len(e.members)
	e.mu.Unlock()

	if !present {
		return false
	}
	log.Info().Str("module", "core.registry").Str("room", s.Room()).
		Str("client", s.ClientID()).Int("members", count).Msg("session left")

	if count == 0 {
		r.mu.Lock()
		// Re-check under both locks: a concurrent Join may have
		// repopulated the entry. Marking it dead before the map delete
		// forces joiners that resolved this entry earlier to retry.
		e.mu.Lock()
		if len(e.members) == 0 {
			e.dead = true
			delete(r.rooms, s.Room())
			log.Info().Str("module", "core.registry").Str("room", s.Room()).Msg("room removed")
		}
		e.mu.Unlock()
		r.mu.Unlock()
	}
	return true
}

// Members returns a snapshot of the room's current sessions.
func (r *Registry) Members(roomID string) []*Session {
	e, ok := r.get(roomID)
	if !ok {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Session, 0, len(e.members))
	for s := range e.members {
		out = append(out, s)
	}
	return out
}

// Broadcast delivers an already-serialized frame to every member of
// the room except exclude. A failing member is logged and skipped,
// never aborting delivery to the rest; its own close path is
// responsible for cleanup. Returns the number of successful sends.
func (r *Registry) Broadcast(roomID string, data Frame, exclude *Session) int {
	e, ok := r.get(roomID)
	if !ok {
		return 0
	}

	e.mu.RLock()
	members := make([]*Session, 0, len(e.members))
	for s := range e.members {
		members = append(members, s)
	}
	e.mu.RUnlock()

	sent := 0
	for _, s := range members {
		if s == exclude {
			continue
		}
		if err := s.Conn().TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "core.registry").Str("room", roomID).
				Str("client", s.ClientID()).Msg("broadcast send failed")
			continue
		}
		sent++
	}
	return sent
}

// State returns a copy of the room's playback state. The second
// return is false when the room does not exist.
func (r *Registry) State(roomID string) (domain.PlaybackState, bool) {
	e, ok := r.get(roomID)
	if !ok {
		return domain.PlaybackState{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, true
}

// UpdateState runs fn on the room's playback state under the room
// lock and returns the resulting copy. Creates the room on first
// state mutation, matching the join path.
func (r *Registry) UpdateState(roomID string, fn func(*domain.PlaybackState)) domain.PlaybackState {
	for {
		e := r.getOrCreate(roomID)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		fn(&e.state)
		st := e.state
		e.mu.Unlock()
		return st
	}
}

// Rooms lists the live rooms with their member counts and current
// media. Order is unspecified.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	entries := make(map[string]*roomEntry, len(r.rooms))
	for id, e := range r.rooms {
		entries[id] = e
	}
	r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(entries))
	for id, e := range entries {
		e.mu.RLock()
		out = append(out, RoomInfo{
			ID:          id,
			MemberCount: len(e.members),
			Path:        e.state.Path,
			Playing:     e.state.Playing,
		})
		e.mu.RUnlock()
	}
	return out
}

// Stats reports total room and client counts.
func (r *Registry) Stats() (rooms, clients int) {
	for _, info := range r.Rooms() {
		rooms++
		clients += info.MemberCount
	}
	return rooms, clients
}
