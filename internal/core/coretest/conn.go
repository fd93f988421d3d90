// Package coretest provides in-memory SignalConnection doubles for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
)

// Conn records every envelope sent to it.
type Conn struct {
	mu      sync.Mutex
	sent    []core.Envelope
	closed  bool
	sendErr error
	closes  int
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(env core.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
}

// FailWith makes every following TrySend return err.
func (c *Conn) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Sent returns a copy of everything delivered so far.
func (c *Conn) Sent() []core.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

// OfType filters Sent by envelope type.
func (c *Conn) OfType(t core.EnvelopeType) []core.Envelope {
	var out []core.Envelope
	for _, env := range c.Sent() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// Last returns the most recent envelope, if any.
func (c *Conn) Last() (core.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return core.Envelope{}, false
	}
	return c.sent[len(c.sent)-1], true
}

// Reset forgets recorded envelopes.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
