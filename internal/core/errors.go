package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/domain"
)

var (
	ErrMalformedEnvelope    = errors.New("malformed envelope")
	ErrUnknownType          = fmt.Errorf("%w: unknown message type", ErrMalformedEnvelope)
	ErrDuplicateIdentity    = errors.New("identity already registered")
	ErrUnknownRecipient     = errors.New("unknown recipient")
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	ErrBridgeConflict       = errors.New("room already has a bridge")
	ErrNotRegistered        = errors.New("not registered")
	ErrAlreadyRegistered    = errors.New("already registered")
	ErrRateLimited          = errors.New("too many registration attempts")
)

// ErrorText is the message placed in an outbound error envelope.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrUnknownType):
		return "Unknown message type"
	case errors.Is(err, ErrMalformedEnvelope):
		return "Invalid message format: " + detail(err, ErrMalformedEnvelope)
	case errors.Is(err, domain.ErrIdentityEmpty),
		errors.Is(err, domain.ErrIdentityTooLong),
		errors.Is(err, domain.ErrIdentityReserved),
		errors.Is(err, domain.ErrRoomNameTooLong),
		errors.Is(err, domain.ErrUnknownRole):
		return "Invalid message format: " + err.Error()
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
