package core

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
)

type EnvelopeType string

// Inbound tags.
const (
	TypeRegister     EnvelopeType = "register"
	TypeJoin         EnvelopeType = "join"
	TypeRoomJoin     EnvelopeType = "room-join"
	TypeOffer        EnvelopeType = "offer"
	TypeAnswer       EnvelopeType = "answer"
	TypeICECandidate EnvelopeType = "ice-candidate"
	TypeData         EnvelopeType = "data"
	TypePing         EnvelopeType = "ping"
)

// Outbound tags. Relayed signals reuse the inbound tags.
const (
	TypeRegistered       EnvelopeType = "registered"
	TypeError            EnvelopeType = "error"
	TypePeerFound        EnvelopeType = "peer-found"
	TypePeerDisconnected EnvelopeType = "peer-disconnected"
	TypeUserJoined       EnvelopeType = "user-joined"
	TypePong             EnvelopeType = "pong"
)

// Envelope is the JSON object exchanged with peers.
type Envelope struct {
	Type           EnvelopeType    `json:"type"`
	Identity       domain.Identity `json:"identity,omitempty"`
	Target         domain.Identity `json:"target,omitempty"`
	Role           string          `json:"role,omitempty"`
	Room           domain.RoomName `json:"room,omitempty"`
	SenderIdentity domain.Identity `json:"senderIdentity,omitempty"`
	TargetIdentity domain.Identity `json:"targetIdentity,omitempty"`
	PeerIdentity   domain.Identity `json:"peerIdentity,omitempty"`
	PeerRole       string          `json:"peerRole,omitempty"`
	Count          int             `json:"count,omitempty"`
	Message        string          `json:"message,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func Registered(identity domain.Identity, room domain.RoomName, count int) Envelope {
	return Envelope{Type: TypeRegistered, Identity: identity, Room: room, Count: count}
}

func ErrorEnvelope(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

func PeerFound(peer domain.Identity, role domain.Role) Envelope {
	return Envelope{Type: TypePeerFound, PeerIdentity: peer, PeerRole: role.String()}
}

func PeerDisconnected(peer domain.Identity) Envelope {
	return Envelope{Type: TypePeerDisconnected, PeerIdentity: peer}
}

func UserJoined(identity domain.Identity, role domain.Role, target domain.Identity) Envelope {
	return Envelope{Type: TypeUserJoined, Identity: identity, Role: role.String(), Target: target}
}

func Pong() Envelope {
	return Envelope{Type: TypePong}
}

// Relayed builds the envelope a recipient sees for a forwarded signal.
// The payload is passed through untouched.
func Relayed(kind EnvelopeType, from, to domain.Identity, room domain.RoomName, payload json.RawMessage) Envelope {
	return Envelope{
		Type:           kind,
		SenderIdentity: from,
		TargetIdentity: to,
		Room:           room,
		Payload:        payload,
	}
}
