package domain

import (
	"errors"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

// Role tells the router which negotiation messages a session takes part in.
type Role string

const (
	RoleUnspecified Role = ""
	RoleSender      Role = "sender"
	RoleReceiver    Role = "receiver"
	RoleHost        Role = "host"
	RoleClient      Role = "client"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleUnspecified, RoleSender, RoleReceiver, RoleHost, RoleClient:
		return r, nil
	default:
		return "", ErrUnknownRole
	}
}

// AcceptsOffers reports whether room-mode offers are fanned out to this role.
func (r Role) AcceptsOffers() bool {
	return r == RoleReceiver || r == RoleClient
}

// AcceptsAnswers reports whether room-mode answers are fanned out to this role.
func (r Role) AcceptsAnswers() bool {
	return r == RoleSender || r == RoleHost
}

func (r Role) String() string {
	if r == RoleUnspecified {
		return "unspecified"
	}
	return string(r)
}
