package app

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/core/coretest"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recipients(ds []Delivery) []domain.Identity {
	var out []domain.Identity
	for _, d := range ds {
		if d.To == nil {
			out = append(out, domain.BridgeIdentity)
			continue
		}
		out = append(out, d.To.Identity)
	}
	return out
}

func TestRouterSymmetric(t *testing.T) {
	r := NewRegistry()
	m := Matcher{Mode: MatchSymmetric}
	rt := Router{Mode: MatchSymmetric}
	alice, _ := registerAndMatch(t, r, m, Attrs{Identity: "alice", Target: "bob"})
	carol, _ := registerAndMatch(t, r, m, Attrs{Identity: "carol", Target: "dave"})
	registerAndMatch(t, r, m, Attrs{Identity: "bob", Target: "alice"})

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	r.View(func(v View) {
		ds, err := rt.Route(v, alice, core.Signal{Kind: core.TypeOffer, Payload: payload})
		require.NoError(t, err)
		require.Len(t, ds, 1)
		assert.Equal(t, domain.Identity("bob"), ds[0].To.Identity)
		assert.Equal(t, core.Relayed(core.TypeOffer, "alice", "bob", "", payload), ds[0].Envelope)

		_, err = rt.Route(v, alice, core.Signal{Kind: core.TypeAnswer, TargetIdentity: "carol", Payload: payload})
		assert.ErrorIs(t, err, core.ErrUnknownRecipient)

		_, err = rt.Route(v, carol, core.Signal{Kind: core.TypeICECandidate, Payload: payload})
		assert.ErrorIs(t, err, core.ErrUnknownRecipient)
	})
}

func TestRouterRoomRoleFanOut(t *testing.T) {
	r := NewRegistry()
	m := Matcher{Mode: MatchRoom}
	rt := Router{Mode: MatchRoom}
	host, _ := registerAndMatch(t, r, m, Attrs{Identity: "host", Room: "lobby", Role: domain.RoleHost})
	c1, _ := registerAndMatch(t, r, m, Attrs{Identity: "c1", Room: "lobby", Role: domain.RoleClient})
	registerAndMatch(t, r, m, Attrs{Identity: "c2", Room: "lobby", Role: domain.RoleClient})
	registerAndMatch(t, r, m, Attrs{Identity: "other", Room: "elsewhere", Role: domain.RoleClient})

	payload := json.RawMessage(`{"sdp":"x"}`)
	r.View(func(v View) {
		ds, err := rt.Route(v, host, core.Signal{Kind: core.TypeOffer, Payload: payload})
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.Identity{"c1", "c2"}, recipients(ds))
		for _, d := range ds {
			assert.Equal(t, domain.RoomName("lobby"), d.Envelope.Room)
			assert.Equal(t, domain.Identity("host"), d.Envelope.SenderIdentity)
		}

		ds, err = rt.Route(v, c1, core.Signal{Kind: core.TypeAnswer, Payload: payload})
		require.NoError(t, err)
		assert.Equal(t, []domain.Identity{"host"}, recipients(ds))

		ds, err = rt.Route(v, c1, core.Signal{Kind: core.TypeICECandidate, TargetIdentity: "c2", Payload: payload})
		require.NoError(t, err)
		assert.Equal(t, []domain.Identity{"c2"}, recipients(ds))
		assert.Equal(t, domain.Identity("c2"), ds[0].Envelope.TargetIdentity)

		_, err = rt.Route(v, c1, core.Signal{Kind: core.TypeOffer, TargetIdentity: "other", Payload: payload})
		assert.ErrorIs(t, err, core.ErrUnknownRecipient)

		_, err = rt.Route(v, c1, core.Signal{Kind: core.TypeOffer, Room: "elsewhere", Payload: payload})
		assert.ErrorIs(t, err, core.ErrUnknownRecipient)
	})
}

func TestRouterRoomWithoutEligibleRole(t *testing.T) {
	r := NewRegistry()
	m := Matcher{Mode: MatchRoom}
	rt := Router{Mode: MatchRoom}
	a, _ := registerAndMatch(t, r, m, Attrs{Identity: "a", Room: "lobby", Role: domain.RoleSender})
	registerAndMatch(t, r, m, Attrs{Identity: "b", Room: "lobby", Role: domain.RoleSender})

	r.View(func(v View) {
		_, err := rt.Route(v, a, core.Signal{Kind: core.TypeOffer, Payload: json.RawMessage(`{}`)})
		assert.ErrorIs(t, err, core.ErrUnknownRecipient)
	})
}

func TestRouterDataReachesBridge(t *testing.T) {
	r := NewRegistry()
	m := Matcher{Mode: MatchRoom}
	rt := Router{Mode: MatchRoom}
	a, _ := registerAndMatch(t, r, m, Attrs{Identity: "a", Room: "lobby"})
	registerAndMatch(t, r, m, Attrs{Identity: "b", Room: "lobby"})
	registerAndMatch(t, r, m, Attrs{Identity: "x", Room: "elsewhere"})

	bridgeConn := coretest.NewConn()
	var binding *BridgeBinding
	r.Update(func(tx *Tx) {
		var err error
		binding, err = tx.BindBridge("lobby", bridgeConn)
		require.NoError(t, err)
	})

	r.View(func(v View) {
		ds, err := rt.Route(v, a, core.Signal{Kind: core.TypeData, Room: "lobby", Payload: json.RawMessage(`"hi"`)})
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.Identity{"b", domain.BridgeIdentity}, recipients(ds))

		ds = rt.RouteBridgeData(v, binding, json.RawMessage(`"from pipe"`))
		assert.ElementsMatch(t, []domain.Identity{"a", "b"}, recipients(ds))
		assert.Equal(t, domain.BridgeIdentity, ds[0].Envelope.SenderIdentity)
	})
}

func TestRouterDataAloneInRoom(t *testing.T) {
	r := NewRegistry()
	m := Matcher{Mode: MatchRoom}
	rt := Router{Mode: MatchRoom}
	a, _ := registerAndMatch(t, r, m, Attrs{Identity: "a", Room: "lobby"})

	r.View(func(v View) {
		ds, err := rt.Route(v, a, core.Signal{Kind: core.TypeData, Room: "lobby", Payload: json.RawMessage(`1`)})
		require.NoError(t, err)
		assert.Empty(t, ds)
	})
}
