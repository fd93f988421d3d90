package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) register(sid core.SessionID, msg core.Register) {
	if err := o.checkMode(msg); err != nil {
		o.Reject(sid, err)
		return
	}

	o.Registry.Update(func(tx *app.Tx) {
		defer o.observe(tx.View)
		conn, ok := tx.Conn(sid)
		if !ok {
			return
		}

		s, err := tx.Register(sid, app.Attrs{
			Identity: msg.Identity,
			Role:     msg.Role,
			Target:   msg.Target,
			Room:     msg.Room,
		})
		switch {
		case errors.Is(err, core.ErrDuplicateIdentity):
			// Terminal: the connection never reaches Registered.
			o.sendError(conn, fmt.Errorf("%w: %s", err, msg.Identity))
			tx.Detach(sid)
			conn.Close()
			return
		case err != nil:
			o.sendError(conn, err)
			return
		}

		o.deliver(o.Matcher.OnRegister(tx, s))
		if s.MatchedWith() != nil {
			o.Metrics.Match()
		}
	})
}

func (o *Orchestrator) checkMode(msg core.Register) error {
	switch o.Matcher.Mode {
	case app.MatchRoom:
		if msg.Room == "" {
			return fmt.Errorf("%w: room required", core.ErrMalformedEnvelope)
		}
	default:
		if msg.Target == "" {
			return fmt.Errorf("%w: target required", core.ErrMalformedEnvelope)
		}
		if msg.Target == msg.Identity {
			return fmt.Errorf("%w: target must differ from identity", core.ErrMalformedEnvelope)
		}
	}
	return nil
}

// Kick closes the connection of the session registered as identity. The
// transport then reports the close and teardown runs as usual.
func (o *Orchestrator) Kick(identity domain.Identity) bool {
	var conn core.SignalConnection
	o.Registry.View(func(v app.View) {
		if s, ok := v.Lookup(identity); ok {
			conn = s.Conn
		}
	})
	if conn == nil {
		return false
	}
	log.Info().Str("module", "orch").Str("identity", string(identity)).Msg("kicked")
	conn.Close()
	return true
}

// EvictRoom closes every member connection and the bridge of a room.
func (o *Orchestrator) EvictRoom(name domain.RoomName) int {
	var conns []core.SignalConnection
	o.Registry.View(func(v app.View) {
		v.ForEachInRoom(name, func(s *app.Session) {
			conns = append(conns, s.Conn)
		})
		if b, ok := v.Bridge(name); ok {
			conns = append(conns, b.Conn)
		}
	})
	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "orch").Str("room", string(name)).Int("closed", len(conns)).Msg("room evicted")
	return len(conns)
}
