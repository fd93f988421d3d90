package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator drives the session lifecycle. Transports call OnConnect,
// OnMessage and OnClose; every state change goes through Registry.Update
// and every routing decision through Registry.View.
//
// Outbound envelopes are queued while the registry lock is held. TrySend
// never blocks, and queueing under the lock keeps notifications about one
// session in the order the state changes happened.
type Orchestrator struct {
	Registry *app.Registry
	Matcher  app.Matcher
	Router   app.Router
	Policy   app.Policy
	Metrics  *metrics.Metrics
}

func New(mode app.MatchMode, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Matcher:  app.Matcher{Mode: mode},
		Router:   app.Router{Mode: mode},
		Policy:   policy,
		Metrics:  m,
	}
}

// OnConnect registers a transport handle and returns its session id.
func (o *Orchestrator) OnConnect(conn core.SignalConnection) core.SessionID {
	sid := core.NewSessionID()
	o.Registry.Update(func(tx *app.Tx) {
		tx.Attach(sid, conn)
		o.observe(tx.View)
	})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("connected")
	return sid
}

// OnMessage handles one parsed envelope from sid.
func (o *Orchestrator) OnMessage(sid core.SessionID, in core.Inbound) {
	switch msg := in.(type) {
	case core.Register:
		o.register(sid, msg)
	case core.Signal:
		o.relay(sid, msg)
	case core.Ping:
		o.reply(sid, core.Pong())
	default:
		o.Reject(sid, fmt.Errorf("%w %T", core.ErrUnknownType, in))
	}
}

// OnClose tears down everything owned by sid. Safe to call more than once.
func (o *Orchestrator) OnClose(sid core.SessionID) {
	o.Registry.Update(func(tx *app.Tx) {
		defer o.observe(tx.View)
		tx.Detach(sid)
		s, ok := tx.Get(sid)
		if !ok {
			return
		}
		rm, ok := tx.Remove(s)
		if !ok {
			return
		}
		o.deliver(o.Matcher.OnRemove(rm))
		if rm.Evicted != nil {
			log.Info().
				Str("module", "orch").
				Str("room", string(rm.Evicted.Room)).
				Str("bridge", rm.Evicted.ID).
				Msg("room emptied, closing bridge")
			rm.Evicted.Conn.Close()
		}
	})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

// Reject answers sid with an error envelope. The connection stays open.
func (o *Orchestrator) Reject(sid core.SessionID, err error) {
	o.Registry.View(func(v app.View) {
		if conn, ok := v.Conn(sid); ok {
			o.sendError(conn, err)
		}
	})
}

func (o *Orchestrator) reply(sid core.SessionID, env core.Envelope) {
	o.Registry.View(func(v app.View) {
		if conn, ok := v.Conn(sid); ok {
			_ = conn.TrySend(env)
		}
	})
}

func (o *Orchestrator) relay(sid core.SessionID, sig core.Signal) {
	o.Registry.View(func(v app.View) {
		conn, ok := v.Conn(sid)
		if !ok {
			return
		}
		from, ok := v.Get(sid)
		if !ok {
			o.sendError(conn, core.ErrNotRegistered)
			return
		}

		deliveries, err := o.Router.Route(v, from, sig)
		if err != nil {
			if sig.BestEffort() {
				o.Metrics.Drop(metrics.DropUnknownRecipient)
				log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", string(sig.Kind)).Msg("dropped")
				return
			}
			o.sendError(conn, err)
			return
		}

		sent := o.deliver(deliveries)
		if sent == 0 && len(deliveries) > 0 && !sig.BestEffort() {
			o.sendError(conn, fmt.Errorf("%w: %s not delivered", core.ErrRecipientUnavailable, sig.Kind))
		}
	})
}

// deliver hands each envelope to its connection and returns how many were
// accepted. A failed send means the recipient is gone or cannot keep up;
// it is never retried.
func (o *Orchestrator) deliver(deliveries []app.Delivery) int {
	sent := 0
	for _, d := range deliveries {
		if err := d.Conn.TrySend(d.Envelope); err != nil {
			o.Metrics.Drop(metrics.DropSendFailed)
			ev := log.Debug().Err(err).Str("module", "orch").Str("type", string(d.Envelope.Type))
			if d.To != nil {
				ev = ev.Str("to", string(d.To.Identity))
			}
			ev.Msg("send failed")
			if o.Policy != nil && o.Policy.OnSendFailure(err) == app.KickMember {
				d.Conn.Close()
			}
			continue
		}
		o.Metrics.Route(string(d.Envelope.Type))
		sent++
	}
	return sent
}

func (o *Orchestrator) sendError(conn core.SignalConnection, err error) {
	log.Warn().Err(err).Str("module", "orch").Msg("rejecting message")
	o.Metrics.Reject(cause(err))
	_ = conn.TrySend(core.ErrorEnvelope(core.ErrorText(err)))
}

func (o *Orchestrator) observe(v app.View) {
	st := v.Stats()
	o.Metrics.Snapshot(st.Connections, st.Sessions, st.Rooms, st.Bridges)
}

// Stats reports current registry counts.
func (o *Orchestrator) Stats() app.Stats {
	var st app.Stats
	o.Registry.View(func(v app.View) { st = v.Stats() })
	return st
}

// Rooms lists live rooms.
func (o *Orchestrator) Rooms() []app.RoomInfo {
	var rooms []app.RoomInfo
	o.Registry.View(func(v app.View) { rooms = v.Rooms() })
	return rooms
}

func cause(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, core.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, core.ErrUnknownRecipient):
		return "unknown_recipient"
	case errors.Is(err, core.ErrRecipientUnavailable):
		return "recipient_unavailable"
	case errors.Is(err, core.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, core.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, core.ErrRateLimited):
		return "rate_limited"
	default:
		return "other"
	}
}
