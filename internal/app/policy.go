package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a recipient whose TrySend failed.
// Either way the envelope itself is gone; delivery is never retried.
type Policy interface {
	OnSendFailure(err error) BackpressureAction
}

// KickPolicy closes connections that cannot keep up, so the transport
// tears the session down like any other disconnect.
type KickPolicy struct{}

func (KickPolicy) OnSendFailure(err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return KickMember
	}
	return NoAction
}

// DropPolicy only drops the envelope.
type DropPolicy struct{}

func (DropPolicy) OnSendFailure(error) BackpressureAction { return NoAction }

// ParsePolicy maps the configured backpressure name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return KickPolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
