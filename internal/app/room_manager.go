package app

import (
	"sort"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BridgeBinding ties one raw-byte connection to one room.
type BridgeBinding struct {
	ID   string
	Room domain.RoomName
	Conn core.SignalConnection
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
	Bridged     bool            `json:"bridged"`
}

type room struct {
	name    domain.RoomName
	members map[core.SessionID]*Session
	bridge  *BridgeBinding
}

func (r *room) empty() bool {
	return len(r.members) == 0 && r.bridge == nil
}

// RoomTable is the set of live rooms. It has no lock of its own: it is
// owned by the Registry and only touched under the registry lock.
type RoomTable struct {
	rooms map[domain.RoomName]*room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.RoomName]*room)}
}

func (t *RoomTable) getOrCreate(name domain.RoomName) *room {
	if r, ok := t.rooms[name]; ok {
		return r
	}
	r := &room{name: name, members: make(map[core.SessionID]*Session)}
	t.rooms[name] = r
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	return r
}

func (t *RoomTable) drop(r *room) {
	delete(t.rooms, r.name)
	log.Info().Str("module", "app.rooms").Str("room", string(r.name)).Msg("room destroyed")
}

func (t *RoomTable) AddMember(name domain.RoomName, s *Session) {
	t.getOrCreate(name).members[s.ID] = s
}

// RemoveMember drops sid from the room. When the last member leaves, the
// room is destroyed and its bridge, if any, is returned for closing.
func (t *RoomTable) RemoveMember(name domain.RoomName, sid core.SessionID) (emptied bool, evicted *BridgeBinding) {
	r, ok := t.rooms[name]
	if !ok {
		return false, nil
	}
	if _, member := r.members[sid]; !member {
		return false, nil
	}
	delete(r.members, sid)
	if len(r.members) > 0 {
		return false, nil
	}
	evicted = r.bridge
	r.bridge = nil
	t.drop(r)
	return true, evicted
}

// Members returns a snapshot of the room's sessions.
func (t *RoomTable) Members(name domain.RoomName) []*Session {
	r, ok := t.rooms[name]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

func (t *RoomTable) MemberCount(name domain.RoomName) int {
	if r, ok := t.rooms[name]; ok {
		return len(r.members)
	}
	return 0
}

func (t *RoomTable) Bridge(name domain.RoomName) (*BridgeBinding, bool) {
	r, ok := t.rooms[name]
	if !ok || r.bridge == nil {
		return nil, false
	}
	return r.bridge, true
}

func (t *RoomTable) BindBridge(name domain.RoomName, conn core.SignalConnection) (*BridgeBinding, error) {
	if r, ok := t.rooms[name]; ok && r.bridge != nil {
		return nil, core.ErrBridgeConflict
	}
	b := &BridgeBinding{ID: uuid.NewString(), Room: name, Conn: conn}
	t.getOrCreate(name).bridge = b
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("bridge", b.ID).Msg("bridge bound")
	return b, nil
}

func (t *RoomTable) UnbindBridge(b *BridgeBinding) bool {
	r, ok := t.rooms[b.Room]
	if !ok || r.bridge != b {
		return false
	}
	r.bridge = nil
	log.Info().Str("module", "app.rooms").Str("room", string(b.Room)).Str("bridge", b.ID).Msg("bridge unbound")
	if r.empty() {
		t.drop(r)
	}
	return true
}

func (t *RoomTable) Len() int { return len(t.rooms) }

func (t *RoomTable) BridgeCount() int {
	n := 0
	for _, r := range t.rooms {
		if r.bridge != nil {
			n++
		}
	}
	return n
}

// List returns room summaries ordered by name.
func (t *RoomTable) List() []RoomInfo {
	out := make([]RoomInfo, 0, len(t.rooms))
	for name, r := range t.rooms {
		out = append(out, RoomInfo{Name: name, MemberCount: len(r.members), Bridged: r.bridge != nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
