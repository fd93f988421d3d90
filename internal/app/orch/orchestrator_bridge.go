package orch

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

// AttachBridge binds a raw-byte connection to room. The room is created if
// it does not exist yet. A second bridge for the same room gets
// ErrBridgeConflict and leaves the existing binding untouched.
func (o *Orchestrator) AttachBridge(room domain.RoomName, conn core.SignalConnection) (*app.BridgeBinding, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room required", core.ErrMalformedEnvelope)
	}
	var (
		b   *app.BridgeBinding
		err error
	)
	o.Registry.Update(func(tx *app.Tx) {
		b, err = tx.BindBridge(room, conn)
		o.observe(tx.View)
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Msg("bridge rejected")
		return nil, err
	}
	return b, nil
}

// OnBridgeFrame broadcasts one newline-delimited frame to the bridge's room
// as a data envelope from the bridge identity. Frames must be UTF-8 text;
// anything else is rejected rather than rewritten.
func (o *Orchestrator) OnBridgeFrame(b *app.BridgeBinding, frame []byte) error {
	if !utf8.Valid(frame) {
		o.Metrics.Reject(cause(core.ErrMalformedEnvelope))
		return fmt.Errorf("%w: frame is not valid UTF-8", core.ErrMalformedEnvelope)
	}
	payload, err := json.Marshal(string(frame))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrMalformedEnvelope, err)
	}
	o.Registry.View(func(v app.View) {
		if cur, ok := v.Bridge(b.Room); !ok || cur != b {
			o.Metrics.Drop(metrics.DropStaleBridge)
			return
		}
		o.deliver(o.Router.RouteBridgeData(v, b, payload))
	})
	return nil
}

// DetachBridge unbinds b after its connection closed. Members keep the room.
func (o *Orchestrator) DetachBridge(b *app.BridgeBinding) {
	var unbound bool
	o.Registry.Update(func(tx *app.Tx) {
		unbound = tx.UnbindBridge(b)
		o.observe(tx.View)
	})
	if unbound {
		log.Info().Str("module", "orch").Str("room", string(b.Room)).Str("bridge", b.ID).Msg("bridge detached")
	}
}
