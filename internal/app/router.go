package app

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

// Router computes recipients for relayed signals. It never mutates the
// registry and sends nothing itself.
//
// offer and answer go to exactly the addressed counterpart (or, in room
// mode without an explicit target, to the role-filtered members);
// ice-candidate and data fan out.
type Router struct {
	Mode MatchMode
}

// Route returns the deliveries for sig sent by from. ErrUnknownRecipient
// means nobody could be resolved.
func (rt Router) Route(v View, from *Session, sig core.Signal) ([]Delivery, error) {
	switch sig.Kind {
	case core.TypeData:
		return rt.roomData(v, from, sig)
	case core.TypeOffer, core.TypeAnswer, core.TypeICECandidate:
		if rt.Mode == MatchSymmetric {
			return rt.toMatched(from, sig)
		}
		return rt.inRoom(v, from, sig)
	default:
		return nil, fmt.Errorf("%w %q", core.ErrUnknownType, sig.Kind)
	}
}

func (rt Router) toMatched(from *Session, sig core.Signal) ([]Delivery, error) {
	peer := from.matchedWith
	if peer == nil {
		return nil, fmt.Errorf("%w: %s is not matched", core.ErrUnknownRecipient, from.Identity)
	}
	if sig.TargetIdentity != "" && sig.TargetIdentity != peer.Identity {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownRecipient, sig.TargetIdentity)
	}
	env := core.Relayed(sig.Kind, from.Identity, peer.Identity, "", sig.Payload)
	return []Delivery{deliverTo(peer, env)}, nil
}

func (rt Router) inRoom(v View, from *Session, sig core.Signal) ([]Delivery, error) {
	room, err := senderRoom(from, sig)
	if err != nil {
		return nil, err
	}

	if sig.TargetIdentity != "" {
		peer, ok := v.Lookup(sig.TargetIdentity)
		if !ok || peer == from || peer.Room != room {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownRecipient, sig.TargetIdentity)
		}
		env := core.Relayed(sig.Kind, from.Identity, peer.Identity, room, sig.Payload)
		return []Delivery{deliverTo(peer, env)}, nil
	}

	accepts := func(*Session) bool { return true }
	switch sig.Kind {
	case core.TypeOffer:
		accepts = func(s *Session) bool { return s.Role.AcceptsOffers() }
	case core.TypeAnswer:
		accepts = func(s *Session) bool { return s.Role.AcceptsAnswers() }
	}

	var out []Delivery
	v.ForEachInRoom(room, func(member *Session) {
		if member == from || !accepts(member) {
			return
		}
		out = append(out, deliverTo(member, core.Relayed(sig.Kind, from.Identity, "", room, sig.Payload)))
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no %s recipient in room %s", core.ErrUnknownRecipient, sig.Kind, room)
	}
	return out, nil
}

// roomData fans a data envelope out to the other members of the sender's
// room and to the room's bridge.
func (rt Router) roomData(v View, from *Session, sig core.Signal) ([]Delivery, error) {
	room, err := senderRoom(from, sig)
	if err != nil {
		return nil, err
	}
	env := core.Relayed(core.TypeData, from.Identity, "", room, sig.Payload)

	var out []Delivery
	v.ForEachInRoom(room, func(member *Session) {
		if member != from {
			out = append(out, deliverTo(member, env))
		}
	})
	if b, ok := v.Bridge(room); ok {
		out = append(out, Delivery{Conn: b.Conn, Envelope: env})
	}
	return out, nil
}

// RouteBridgeData wraps one inbound bridge frame for every member of the
// bridge's room. The bridge never receives its own frames back.
func (rt Router) RouteBridgeData(v View, b *BridgeBinding, payload json.RawMessage) []Delivery {
	env := core.Relayed(core.TypeData, domain.BridgeIdentity, "", b.Room, payload)
	var out []Delivery
	v.ForEachInRoom(b.Room, func(member *Session) {
		out = append(out, deliverTo(member, env))
	})
	return out
}

// senderRoom resolves the room a room-addressed signal travels in. A
// sender may only address its own room.
func senderRoom(from *Session, sig core.Signal) (domain.RoomName, error) {
	if from.Room == "" {
		return "", fmt.Errorf("%w: %s is not in a room", core.ErrUnknownRecipient, from.Identity)
	}
	if sig.Room != "" && sig.Room != from.Room {
		return "", fmt.Errorf("%w: not a member of room %s", core.ErrUnknownRecipient, sig.Room)
	}
	return from.Room, nil
}
