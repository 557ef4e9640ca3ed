// Package session implements the Session State Machine: the layer above
// Transport and the Packet Model that enforces one logical request/response
// pair in flight at a time, defers packets the caller chose not to flush
// immediately, and turns a broken Port into a sticky EOF for every
// subsequent operation rather than a fresh error each time.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fbremote/fbremote/internal/compression"
	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/fbremote/fbremote/pkg/bufpool"
)

// Session wraps one Port with the packet-level send/receive discipline the
// object managers build on: Defer queues, Send flushes the queue together
// with its own packet, Receive reads the wire without looking at the
// deferred queue, and once the underlying transport breaks every
// subsequent call returns the same sticky error without touching the Port
// again.
type Session struct {
	port   *transport.Port
	writer io.Writer
	dec    *xdr.Codec

	mu        sync.Mutex
	deferred  []*wire.Packet
	brokenErr error

	cancelKind      wire.CancelKind
	cancelRequested bool
}

// New wraps port for packet-level traffic. If compress is non-nil, both
// directions run through it (the compression filter negotiated during
// connect); otherwise packets travel directly over the port.
func New(port *transport.Port, compress *compression.Filter) *Session {
	var rw interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
	}
	if compress != nil {
		rw = compress
	} else {
		rw = port
	}

	return &Session{
		port:   port,
		writer: rw,
		dec:    xdr.NewDecoder(rw),
	}
}

// sticky returns the session's latched broken-connection error, if any.
func (s *Session) sticky() error {
	if s.brokenErr != nil {
		return s.brokenErr
	}
	if s.port.State() != transport.StatePending {
		s.brokenErr = protoerr.NewNetworkError(fmt.Sprintf("session on %s port", s.port.Peer.Address), fmt.Errorf("port is %s", s.port.State()))
		return s.brokenErr
	}
	return nil
}

// latch records err as the session's permanent broken-connection state.
// Every later call returns the same error without attempting more I/O.
func (s *Session) latch(err error) error {
	if s.brokenErr == nil {
		s.brokenErr = err
	}
	return s.brokenErr
}

// Defer queues p to be sent together with the next flushing send, rather
// than writing it immediately. The session layer, not Transport, owns this
// queue because only it knows the logical request boundary a deferred
// packet is allowed to ride along with.
func (s *Session) Defer(p *wire.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sticky(); err != nil {
		return err
	}
	s.deferred = append(s.deferred, p)
	return nil
}

// Send flushes any deferred packets followed by p, as one lazy-send batch,
// and blocks until all of it has left the wire.
func (s *Session) Send(p *wire.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sticky(); err != nil {
		return err
	}

	batch := append(s.deferred, p)
	s.deferred = nil

	// The encode scratch space is fully drained by the Write below before
	// Send returns, so the pooled backing array is always safe to recycle
	// regardless of how much bytes.Buffer grew it in the meantime.
	scratch := bufpool.Get(0)
	defer bufpool.Put(scratch)
	buf := bytes.NewBuffer(scratch)
	enc := xdr.NewEncoder(buf)
	for _, pkt := range batch {
		if err := wire.Encode(enc, pkt); err != nil {
			return s.latch(err)
		}
	}

	if _, err := s.writer.Write(buf.Bytes()); err != nil {
		return s.latch(err)
	}
	return nil
}

// SendPacket is Send for the common case of a single, unbatched packet.
func (s *Session) SendPacket(p *wire.Packet) error {
	return s.Send(p)
}

// Receive reads the next packet from the wire. It never looks at the
// deferred-send queue; "receive_packet_noqueue" in the protocol's own
// terms, since replies are never deferred, only requests.
func (s *Session) Receive(ctx context.Context) (*wire.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sticky(); err != nil {
		return nil, err
	}

	p, err := wire.Decode(s.dec)
	if err != nil {
		return nil, s.latch(err)
	}
	return p, nil
}

// RequestCancel marks a cancel of the given kind as pending. The caller
// (typically the async/event channel acting on an out-of-band signal) is
// responsible for actually delivering it; Session keeps only the latest
// request, so a second call before PendingCancel collects the first
// replaces its kind.
func (s *Session) RequestCancel(kind wire.CancelKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = true
	s.cancelKind = kind
}

// PendingCancel reports whether a cancel has been requested and clears the
// flag, returning its kind. The session layer checks this between fetch
// batches so a raise interrupts a long-running pipelined fetch without
// tearing down the connection.
func (s *Session) PendingCancel() (wire.CancelKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelRequested {
		return 0, false
	}
	s.cancelRequested = false
	return s.cancelKind, true
}

// Broken reports whether the session has latched a permanent error.
func (s *Session) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brokenErr != nil
}

// Close closes the underlying port. graceful mirrors transport.Port.Close.
func (s *Session) Close(graceful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close(graceful)
}

// Port exposes the underlying transport port for layers (auth, listener
// keepalive) that need to act on it directly.
func (s *Session) Port() *transport.Port {
	return s.port
}
