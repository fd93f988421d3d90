package app

import (
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// Session is the registry's record of one registered connection.
// Fields are only read or written while holding the registry lock,
// i.e. inside View or Update.
type Session struct {
	ID       core.SessionID
	Identity domain.Identity
	Role     domain.Role
	Target   domain.Identity
	Room     domain.RoomName
	Conn     core.SignalConnection

	matchedWith *Session
}

// MatchedWith returns the paired session, or nil.
func (s *Session) MatchedWith() *Session { return s.matchedWith }

// Attrs is what a register message asks for.
type Attrs struct {
	Identity domain.Identity
	Role     domain.Role
	Target   domain.Identity
	Room     domain.RoomName
}

// Removal describes what Remove tore down, so notifications can be emitted.
type Removal struct {
	Session *Session
	// Peer is the former counterpart, now unmatched.
	Peer *Session
	// RoomEmpty is set when the session was the last member of its room.
	RoomEmpty bool
	// Evicted is the bridge dropped together with the emptied room.
	Evicted *BridgeBinding
}

// Stats is a point-in-time count for status endpoints and metrics.
type Stats struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
	Matched     int `json:"matched"`
	Rooms       int `json:"rooms"`
	Bridges     int `json:"bridges"`
}

// Registry owns every live connection handle, session, room and bridge
// binding. All mutation happens inside Update under one exclusive lock;
// View runs concurrently with other views but never with an Update.
type Registry struct {
	mu         sync.RWMutex
	conns      map[core.SessionID]core.SignalConnection
	sessions   map[core.SessionID]*Session
	identities map[domain.Identity]core.SessionID
	rooms      *RoomTable
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[core.SessionID]core.SignalConnection),
		sessions:   make(map[core.SessionID]*Session),
		identities: make(map[domain.Identity]core.SessionID),
		rooms:      NewRoomTable(),
	}
}

// Update runs fn with exclusive access.
func (r *Registry) Update(fn func(tx *Tx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&Tx{View{r}})
}

// View runs fn with shared read access.
func (r *Registry) View(fn func(v View)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(View{r})
}

// View is the read-only half of the registry API.
type View struct {
	r *Registry
}

func (v View) Conn(id core.SessionID) (core.SignalConnection, bool) {
	c, ok := v.r.conns[id]
	return c, ok
}

func (v View) Get(id core.SessionID) (*Session, bool) {
	s, ok := v.r.sessions[id]
	return s, ok
}

func (v View) Lookup(identity domain.Identity) (*Session, bool) {
	id, ok := v.r.identities[identity]
	if !ok {
		return nil, false
	}
	return v.Get(id)
}

// ForEachInRoom calls fn for a snapshot of the room's members, so fn may
// remove sessions while iterating.
func (v View) ForEachInRoom(name domain.RoomName, fn func(*Session)) {
	for _, s := range v.r.rooms.Members(name) {
		fn(s)
	}
}

// ForEachMatching calls fn for a snapshot of the sessions satisfying pred.
func (v View) ForEachMatching(pred func(*Session) bool, fn func(*Session)) {
	snap := make([]*Session, 0, len(v.r.sessions))
	for _, s := range v.r.sessions {
		if pred(s) {
			snap = append(snap, s)
		}
	}
	for _, s := range snap {
		fn(s)
	}
}

func (v View) RoomSize(name domain.RoomName) int {
	return v.r.rooms.MemberCount(name)
}

func (v View) Bridge(name domain.RoomName) (*BridgeBinding, bool) {
	return v.r.rooms.Bridge(name)
}

func (v View) Rooms() []RoomInfo {
	return v.r.rooms.List()
}

func (v View) Stats() Stats {
	st := Stats{
		Connections: len(v.r.conns),
		Sessions:    len(v.r.sessions),
		Rooms:       v.r.rooms.Len(),
		Bridges:     v.r.rooms.BridgeCount(),
	}
	v.ForEachMatching(
		func(s *Session) bool { return s.matchedWith != nil },
		func(*Session) { st.Matched++ },
	)
	return st
}

// Tx is the mutating half of the registry API. It is only handed out by
// Registry.Update.
type Tx struct {
	View
}

// Attach records a freshly connected, not yet registered, transport handle.
func (tx *Tx) Attach(id core.SessionID, conn core.SignalConnection) {
	tx.r.conns[id] = conn
	log.Debug().Str("module", "app.registry").Str("sid", string(id)).Msg("attached connection")
}

// Detach forgets a transport handle. It does not remove the session.
func (tx *Tx) Detach(id core.SessionID) {
	delete(tx.r.conns, id)
}

// Register creates the session for an attached connection. The identity
// must not belong to another live session; the existing one is left intact.
func (tx *Tx) Register(id core.SessionID, a Attrs) (*Session, error) {
	conn, ok := tx.r.conns[id]
	if !ok {
		return nil, core.ErrConnClosed
	}
	if _, ok := tx.r.sessions[id]; ok {
		return nil, core.ErrAlreadyRegistered
	}
	if _, taken := tx.r.identities[a.Identity]; taken {
		return nil, core.ErrDuplicateIdentity
	}

	s := &Session{
		ID:       id,
		Identity: a.Identity,
		Role:     a.Role,
		Target:   a.Target,
		Room:     a.Room,
		Conn:     conn,
	}
	tx.r.sessions[id] = s
	tx.r.identities[a.Identity] = id
	if a.Room != "" {
		tx.r.rooms.AddMember(a.Room, s)
	}
	log.Info().
		Str("module", "app.registry").
		Str("sid", string(id)).
		Str("identity", string(a.Identity)).
		Str("room", string(a.Room)).
		Msg("registered session")
	return s, nil
}

// Remove drops a session, its room membership and its match. It is
// idempotent: removing an unknown or already removed session returns false.
func (tx *Tx) Remove(s *Session) (Removal, bool) {
	if s == nil || tx.r.sessions[s.ID] != s {
		return Removal{}, false
	}
	delete(tx.r.sessions, s.ID)
	if tx.r.identities[s.Identity] == s.ID {
		delete(tx.r.identities, s.Identity)
	}

	rm := Removal{Session: s, Peer: tx.ClearMatch(s)}
	if s.Room != "" {
		rm.RoomEmpty, rm.Evicted = tx.r.rooms.RemoveMember(s.Room, s.ID)
	}
	log.Info().
		Str("module", "app.registry").
		Str("sid", string(s.ID)).
		Str("identity", string(s.Identity)).
		Bool("room_empty", rm.RoomEmpty).
		Msg("removed session")
	return rm, true
}

// SetMatch pairs a and b. Both sides are written under the same lock, so
// no reader ever observes a one-sided match.
func (tx *Tx) SetMatch(a, b *Session) {
	a.matchedWith = b
	b.matchedWith = a
}

// ClearMatch unpairs s and returns its former counterpart, or nil.
func (tx *Tx) ClearMatch(s *Session) *Session {
	peer := s.matchedWith
	if peer == nil {
		return nil
	}
	s.matchedWith = nil
	if peer.matchedWith == s {
		peer.matchedWith = nil
	}
	return peer
}

// BindBridge attaches a raw-byte connection to a room, creating the room
// if needed. A room carries at most one bridge.
func (tx *Tx) BindBridge(name domain.RoomName, conn core.SignalConnection) (*BridgeBinding, error) {
	return tx.r.rooms.BindBridge(name, conn)
}

// UnbindBridge detaches b if it is still bound. The room is destroyed when
// no members remain. It reports whether b was bound.
func (tx *Tx) UnbindBridge(b *BridgeBinding) bool {
	return tx.r.rooms.UnbindBridge(b)
}
