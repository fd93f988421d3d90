package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

// pingTicker wraps a ticker that may be disabled (nil C never fires).
type pingTicker struct {
	t *time.Ticker
	C <-chan time.Time
}

func (p pingTicker) Stop() {
	if p.t != nil {
		p.t.Stop()
	}
}

func (ctl *SignalWSController) newPingTicker() pingTicker {
	if ctl.Opts.PingPeriod <= 0 {
		return pingTicker{}
	}
	t := time.NewTicker(ctl.Opts.PingPeriod)
	return pingTicker{t: t, C: t.C}
}

// pongWait is how long the reader waits for any frame, pong included.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.Opts.PingPeriod * 10 / 9
}

// armKeepalive extends the read deadline every time the peer answers a ping.
func (ctl *SignalWSController) armKeepalive(c *WsSignalConn) {
	if ctl.Opts.PingPeriod <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})
}

func (ctl *SignalWSController) sendPing(c *WsSignalConn) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
