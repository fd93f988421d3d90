// Package bridge exposes rooms to plain TCP clients that speak
// newline-delimited text instead of the JSON envelope protocol.
//
// The first line a client sends names the room to bind. Every following
// line is broadcast to the room's members as a data envelope; data
// envelopes sent by members come back as one line each.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	maxFrameBytes    = 64 * 1024
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// Server accepts raw TCP connections and binds each to a room.
type Server struct {
	// ListenAddr is the TCP address to listen on (e.g. ":8081").
	ListenAddr string
	Orch       *orch.Orchestrator
	// SendBuffer is the number of frames queued per connection.
	SendBuffer int

	listener    net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
	connections sync.WaitGroup
}

// Start binds the listener and returns once it is accepting. The server
// runs until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.ListenAddr == "" {
		return errors.New("bridge: ListenAddr is required")
	}
	if s.Orch == nil {
		return errors.New("bridge: Orch is required")
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = 64
	}

	listener, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("bridge: failed to listen on %s: %w", s.ListenAddr, err)
	}
	s.listener = listener

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.acceptLoop(ctx)
	}()
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	log.Info().Str("module", "bridge").Str("addr", listener.Addr().String()).Msg("bridge listening")
	return nil
}

// Addr returns the listener's address, useful when binding to port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for open connections to drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.done != nil {
		<-s.done
	}
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	if s.done != nil {
		<-s.done
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.connections.Wait()
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					s.connections.Wait()
					return
				}
				log.Error().Err(err).Str("module", "bridge").Msg("accept failed")
				continue
			}
		}

		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	logger := log.With().Str("module", "bridge").Str("remote", conn.RemoteAddr().String()).Logger()
	raw := newRawConn(conn, s.SendBuffer)
	defer func() {
		raw.Close()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	room, err := readRoom(scanner)
	if err != nil {
		logger.Warn().Err(err).Msg("bad handshake")
		raw.writeLine("error: " + err.Error())
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	binding, err := s.Orch.AttachBridge(room, raw)
	if err != nil {
		raw.writeLine("error: " + err.Error())
		return
	}
	logger = logger.With().Str("room", string(room)).Str("bridge", binding.ID).Logger()
	logger.Info().Msg("bridge connected")

	go raw.writePump(ctx, &logger)

	for scanner.Scan() {
		frame := trimCR(scanner.Bytes())
		if len(frame) == 0 {
			continue
		}
		if err := s.Orch.OnBridgeFrame(binding, frame); err != nil {
			logger.Debug().Err(err).Msg("frame rejected")
			if err := raw.enqueue([]byte("error: " + core.ErrorText(err) + "\n")); err != nil {
				logger.Debug().Err(err).Msg("error line not queued")
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug().Err(err).Msg("bridge read error")
	}

	s.Orch.DetachBridge(binding)
	logger.Info().Msg("bridge disconnected")
}

// readRoom consumes the handshake line.
func readRoom(scanner *bufio.Scanner) (domain.RoomName, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("connection closed before handshake")
	}
	room, err := domain.ParseRoomName(string(trimCR(scanner.Bytes())))
	if err != nil {
		return "", err
	}
	if room == "" {
		return "", errors.New("room required")
	}
	return room, nil
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

// rawConn is the SignalConnection side of a bridge: only data envelopes
// are written, as their payload text plus a newline. Close stops the
// queue; the write pump drains it and closes the socket.
type rawConn struct {
	conn net.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newRawConn(conn net.Conn, buffer int) *rawConn {
	return &rawConn{conn: conn, send: make(chan []byte, buffer)}
}

func (c *rawConn) TrySend(env core.Envelope) error {
	if env.Type != core.TypeData || env.SenderIdentity == domain.BridgeIdentity {
		return nil
	}
	return c.enqueue(FrameFromPayload(env.Payload))
}

func (c *rawConn) enqueue(line []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- line:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *rawConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writeLine writes directly, bypassing the queue. Only used before the
// write pump starts.
func (c *rawConn) writeLine(s string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, _ = c.conn.Write([]byte(s + "\n"))
}

func (c *rawConn) writePump(ctx context.Context, logger *zerolog.Logger) {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Debug().Err(err).Msg("bridge set deadline")
				return
			}
			if _, err := c.conn.Write(line); err != nil {
				logger.Debug().Err(err).Msg("bridge write error")
				return
			}
		}
	}
}
