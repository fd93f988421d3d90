package core

import "github.com/google/uuid"

// SessionID is the stable handle the transport uses for one connection.
// It is assigned on connect, before the peer registers an identity.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
