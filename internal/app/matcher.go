package app

import (
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/rs/zerolog/log"
)

type MatchMode string

const (
	// MatchSymmetric pairs a(target=b) with b(target=a).
	MatchSymmetric MatchMode = "symmetric"
	// MatchRoom treats every session sharing a room as matched.
	MatchRoom MatchMode = "room"
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch m := MatchMode(s); m {
	case MatchSymmetric, MatchRoom:
		return m, nil
	case "":
		return MatchSymmetric, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// Delivery is one outbound envelope for one connection.
type Delivery struct {
	// To is the recipient session; nil when Conn is a bridge.
	To       *Session
	Conn     core.SignalConnection
	Envelope core.Envelope
}

func deliverTo(s *Session, env core.Envelope) Delivery {
	return Delivery{To: s, Conn: s.Conn, Envelope: env}
}

// Matcher associates sessions and produces the notifications that go with
// it. Matching only runs when a session arrives: a peer left unmatched by
// a disconnect waits for the next registration rather than being
// re-scanned against the existing pool.
type Matcher struct {
	Mode MatchMode
}

// OnRegister must run in the same Update as the registration of s.
func (m Matcher) OnRegister(tx *Tx, s *Session) []Delivery {
	out := []Delivery{deliverTo(s, core.Registered(s.Identity, s.Room, tx.RoomSize(s.Room)))}

	if s.Room != "" {
		joined := core.UserJoined(s.Identity, s.Role, s.Target)
		tx.ForEachInRoom(s.Room, func(member *Session) {
			if member != s {
				out = append(out, deliverTo(member, joined))
			}
		})
	}

	if m.Mode == MatchSymmetric {
		if peer := m.counterpart(tx.View, s); peer != nil {
			tx.SetMatch(s, peer)
			log.Info().
				Str("module", "app.matcher").
				Str("identity", string(s.Identity)).
				Str("peer", string(peer.Identity)).
				Msg("peers matched")
			out = append(out,
				deliverTo(s, core.PeerFound(peer.Identity, peer.Role)),
				deliverTo(peer, core.PeerFound(s.Identity, s.Role)),
			)
		}
	}
	return out
}

// counterpart finds the unmatched session whose identity is s's target
// and whose target is s's identity. Identities are unique, so an index
// lookup is the whole scan.
func (m Matcher) counterpart(v View, s *Session) *Session {
	if s.Target == "" || s.matchedWith != nil {
		return nil
	}
	peer, ok := v.Lookup(s.Target)
	if !ok || peer == s || peer.matchedWith != nil || peer.Target != s.Identity {
		return nil
	}
	return peer
}

// OnRemove notifies the counterpart that lost its match.
func (m Matcher) OnRemove(rm Removal) []Delivery {
	if rm.Peer == nil {
		return nil
	}
	log.Info().
		Str("module", "app.matcher").
		Str("identity", string(rm.Session.Identity)).
		Str("peer", string(rm.Peer.Identity)).
		Msg("match cleared")
	return []Delivery{deliverTo(rm.Peer, core.PeerDisconnected(rm.Session.Identity))}
}
