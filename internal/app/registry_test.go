package app

import (
	"testing"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/core/coretest"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attach(t *testing.T, r *Registry) (core.SessionID, *coretest.Conn) {
	t.Helper()
	sid := core.NewSessionID()
	conn := coretest.NewConn()
	r.Update(func(tx *Tx) { tx.Attach(sid, conn) })
	return sid, conn
}

func register(t *testing.T, r *Registry, a Attrs) *Session {
	t.Helper()
	sid, _ := attach(t, r)
	var (
		s   *Session
		err error
	)
	r.Update(func(tx *Tx) { s, err = tx.Register(sid, a) })
	require.NoError(t, err)
	return s
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	sid, conn := attach(t, r)

	var s *Session
	r.Update(func(tx *Tx) {
		var err error
		s, err = tx.Register(sid, Attrs{Identity: "alice", Target: "bob", Role: domain.RoleSender})
		require.NoError(t, err)
	})
	assert.Equal(t, domain.Identity("alice"), s.Identity)
	assert.Same(t, conn, s.Conn)

	r.View(func(v View) {
		got, ok := v.Lookup("alice")
		require.True(t, ok)
		assert.Same(t, s, got)
		assert.Equal(t, Stats{Connections: 1, Sessions: 1}, v.Stats())
	})

	r.Update(func(tx *Tx) {
		_, err := tx.Register(sid, Attrs{Identity: "alice2", Target: "bob"})
		assert.ErrorIs(t, err, core.ErrAlreadyRegistered)

		_, err = tx.Register("missing", Attrs{Identity: "x", Target: "y"})
		assert.ErrorIs(t, err, core.ErrConnClosed)
	})
}

func TestRegistryDuplicateIdentityKeepsExisting(t *testing.T) {
	r := NewRegistry()
	first := register(t, r, Attrs{Identity: "alice", Target: "bob"})

	sid, _ := attach(t, r)
	r.Update(func(tx *Tx) {
		_, err := tx.Register(sid, Attrs{Identity: "alice", Target: "carol"})
		assert.ErrorIs(t, err, core.ErrDuplicateIdentity)
	})

	r.View(func(v View) {
		got, ok := v.Lookup("alice")
		require.True(t, ok)
		assert.Same(t, first, got)
		_, ok = v.Get(sid)
		assert.False(t, ok)
	})
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := register(t, r, Attrs{Identity: "alice", Target: "bob"})
	b := register(t, r, Attrs{Identity: "bob", Target: "alice"})
	r.Update(func(tx *Tx) { tx.SetMatch(a, b) })

	r.Update(func(tx *Tx) {
		rm, ok := tx.Remove(a)
		require.True(t, ok)
		assert.Same(t, b, rm.Peer)
		assert.Nil(t, b.MatchedWith())

		_, ok = tx.Remove(a)
		assert.False(t, ok)
	})

	r.View(func(v View) {
		_, ok := v.Lookup("alice")
		assert.False(t, ok)
		assert.Equal(t, 1, v.Stats().Sessions)
	})

	// the identity is free again
	register(t, r, Attrs{Identity: "alice", Target: "bob"})
}

func TestRegistryRoomLifetime(t *testing.T) {
	r := NewRegistry()
	a := register(t, r, Attrs{Identity: "a", Room: "lobby"})
	b := register(t, r, Attrs{Identity: "b", Room: "lobby"})

	bridgeConn := coretest.NewConn()
	var binding *BridgeBinding
	r.Update(func(tx *Tx) {
		var err error
		binding, err = tx.BindBridge("lobby", bridgeConn)
		require.NoError(t, err)

		_, err = tx.BindBridge("lobby", coretest.NewConn())
		assert.ErrorIs(t, err, core.ErrBridgeConflict)
	})

	r.View(func(v View) {
		assert.Equal(t, 2, v.RoomSize("lobby"))
		assert.Equal(t, []RoomInfo{{Name: "lobby", MemberCount: 2, Bridged: true}}, v.Rooms())
	})

	r.Update(func(tx *Tx) {
		rm, _ := tx.Remove(a)
		assert.False(t, rm.RoomEmpty)
		assert.Nil(t, rm.Evicted)

		rm, _ = tx.Remove(b)
		assert.True(t, rm.RoomEmpty)
		assert.Same(t, binding, rm.Evicted)
	})

	r.View(func(v View) {
		assert.Empty(t, v.Rooms())
		_, ok := v.Bridge("lobby")
		assert.False(t, ok)
	})

	// unbinding after eviction is a no-op
	r.Update(func(tx *Tx) { assert.False(t, tx.UnbindBridge(binding)) })
}

func TestRegistryBridgeOnlyRoom(t *testing.T) {
	r := NewRegistry()
	var binding *BridgeBinding
	r.Update(func(tx *Tx) {
		var err error
		binding, err = tx.BindBridge("pipe", coretest.NewConn())
		require.NoError(t, err)
	})
	r.View(func(v View) { assert.Equal(t, 1, v.Stats().Rooms) })

	r.Update(func(tx *Tx) { assert.True(t, tx.UnbindBridge(binding)) })
	r.View(func(v View) { assert.Equal(t, 0, v.Stats().Rooms) })
}

func TestForEachInRoomAllowsRemoval(t *testing.T) {
	r := NewRegistry()
	for _, id := range []domain.Identity{"a", "b", "c"} {
		register(t, r, Attrs{Identity: id, Room: "lobby"})
	}
	r.Update(func(tx *Tx) {
		n := 0
		tx.ForEachInRoom("lobby", func(s *Session) {
			n++
			tx.Remove(s)
		})
		assert.Equal(t, 3, n)
	})
	r.View(func(v View) { assert.Equal(t, Stats{Connections: 3}, v.Stats()) })
}

func TestForEachMatching(t *testing.T) {
	r := NewRegistry()
	register(t, r, Attrs{Identity: "a", Room: "lobby", Role: domain.RoleHost})
	register(t, r, Attrs{Identity: "b", Room: "lobby", Role: domain.RoleClient})
	register(t, r, Attrs{Identity: "c", Target: "d", Role: domain.RoleClient})

	var got []domain.Identity
	r.View(func(v View) {
		v.ForEachMatching(func(s *Session) bool { return s.Role == domain.RoleClient }, func(s *Session) {
			got = append(got, s.Identity)
		})
	})
	assert.ElementsMatch(t, []domain.Identity{"b", "c"}, got)
}

func TestStatsCountsMatchedSessions(t *testing.T) {
	r := NewRegistry()
	a := register(t, r, Attrs{Identity: "a", Target: "b"})
	b := register(t, r, Attrs{Identity: "b", Target: "a"})
	register(t, r, Attrs{Identity: "c", Target: "d"})

	r.Update(func(tx *Tx) { tx.SetMatch(a, b) })
	r.View(func(v View) { assert.Equal(t, 2, v.Stats().Matched) })

	r.Update(func(tx *Tx) { tx.ClearMatch(a) })
	r.View(func(v View) { assert.Equal(t, 0, v.Stats().Matched) })
}
