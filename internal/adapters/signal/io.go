package signal

import (
	"context"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := ctl.newPingTicker()
	defer func() {
		ping.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := ctl.sendPing(c); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, token string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnClose(sid)
		c.Close()
		cancel()
	}()

	c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	ctl.armKeepalive(c)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(sid, token, data)
		}
	}
}

// handleSignal parses one frame and hands it to the orchestrator. Parse
// errors are answered with an error envelope; the connection stays open.
func (ctl *SignalWSController) handleSignal(sid core.SessionID, token string, data []byte) {
	in, err := core.ParseInbound(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.Orch.Reject(sid, err)
		return
	}

	switch msg := in.(type) {
	case core.Register:
		key := token
		if key == "" {
			key = string(sid)
		}
		if ctl.Limiter != nil && !ctl.Limiter.Allow(key) {
			ctl.Orch.Reject(sid, core.ErrRateLimited)
			return
		}
	case core.Signal:
		if ctl.Opts.StrictPayloads {
			if err := validatePayload(msg); err != nil {
				ctl.Orch.Reject(sid, err)
				return
			}
		}
	}

	ctl.Orch.OnMessage(sid, in)
}
