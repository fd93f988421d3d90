package core

import "errors"

//go:generate mockgen -source=signal_iface.go -destination=mock_core/signal_mock.go -package=mock_core

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
//
// TrySend never blocks: it either queues the envelope for the writer or
// fails with ErrConnClosed / ErrBackpressure.
type SignalConnection interface {
	TrySend(Envelope) error
	Close()
}
