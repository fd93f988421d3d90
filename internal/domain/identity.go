// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxIdentityLen = 64
	MaxRoomNameLen = 64

	// BridgeIdentity is the sender identity stamped on envelopes that
	// originate from a raw-byte bridge connection.
	BridgeIdentity Identity = "<bridge>"
)

var (
	ErrIdentityEmpty    = errors.New("identity empty")
	ErrIdentityTooLong  = errors.New("identity too long")
	ErrIdentityReserved = errors.New("identity reserved")
	ErrRoomNameTooLong  = errors.New("room name too long")
)

// Identity is the opaque name a peer registers under.
type Identity string

// ParseIdentity trims and validates a registered identity.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	if Identity(s) == BridgeIdentity {
		return "", ErrIdentityReserved
	}
	return Identity(s), nil
}

// ParseTarget is ParseIdentity for an optional counterpart: empty is allowed.
func ParseTarget(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return ParseIdentity(raw)
}
