package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// Inbound is a parsed client message. The set of variants is closed:
// Register, Signal and Ping.
type Inbound interface {
	inbound()
}

// Register asks to create a session for the connection.
type Register struct {
	Identity domain.Identity
	Target   domain.Identity
	Room     domain.RoomName
	Role     domain.Role
}

// Signal is an addressed message relayed to other sessions:
// offer, answer, ice-candidate or data.
type Signal struct {
	Kind           EnvelopeType
	TargetIdentity domain.Identity
	Room           domain.RoomName
	Payload        json.RawMessage
}

type Ping struct{}

func (Register) inbound() {}
func (Signal) inbound()   {}
func (Ping) inbound()     {}

// BestEffort reports whether delivery failures for this signal are dropped
// silently instead of being reported to the sender.
func (s Signal) BestEffort() bool {
	return s.Kind == TypeICECandidate || s.Kind == TypeData
}

// wireMessage accepts the current field names plus the legacy ones
// (name, mode, targetAddress) older clients still send.
type wireMessage struct {
	Type           EnvelopeType    `json:"type"`
	Identity       string          `json:"identity"`
	Name           string          `json:"name"`
	Target         string          `json:"target"`
	TargetAddress  string          `json:"targetAddress"`
	Role           string          `json:"role"`
	Mode           string          `json:"mode"`
	Room           string          `json:"room"`
	TargetIdentity string          `json:"targetIdentity"`
	Payload        json.RawMessage `json:"payload"`
}

// ParseInbound decodes one client message. Every error wraps
// ErrMalformedEnvelope.
func ParseInbound(data []byte) (Inbound, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	switch w.Type {
	case TypeRegister, TypeJoin, TypeRoomJoin:
		return parseRegister(w)
	case TypeOffer, TypeAnswer, TypeICECandidate, TypeData:
		return parseSignal(w)
	case TypePing:
		return Ping{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, w.Type)
	}
}

func parseRegister(w wireMessage) (Inbound, error) {
	identity, err := domain.ParseIdentity(firstNonEmpty(w.Identity, w.Name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	target, err := domain.ParseTarget(firstNonEmpty(w.Target, w.TargetAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: target: %w", ErrMalformedEnvelope, err)
	}
	room, err := domain.ParseRoomName(w.Room)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	role, err := domain.ParseRole(firstNonEmpty(w.Role, w.Mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if target == "" && room == "" {
		return nil, fmt.Errorf("%w: target or room required", ErrMalformedEnvelope)
	}
	return Register{Identity: identity, Target: target, Room: room, Role: role}, nil
}

func parseSignal(w wireMessage) (Inbound, error) {
	payload := bytes.TrimSpace(w.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, fmt.Errorf("%w: %s requires payload", ErrMalformedEnvelope, w.Type)
	}
	target, err := domain.ParseTarget(w.TargetIdentity)
	if err != nil {
		return nil, fmt.Errorf("%w: targetIdentity: %w", ErrMalformedEnvelope, err)
	}
	room, err := domain.ParseRoomName(w.Room)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if w.Type == TypeData && room == "" {
		return nil, fmt.Errorf("%w: data requires room", ErrMalformedEnvelope)
	}
	return Signal{
		Kind:           w.Type,
		TargetIdentity: target,
		Room:           room,
		Payload:        json.RawMessage(payload),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
