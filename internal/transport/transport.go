// Package transport implements the byte-level I/O the wire protocol rides
// on: framing-free send/recv over stream sockets, keepalive supervision, and
// graceful-versus-forcible close, as described in the Transport Layer
// component of the engine design.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/transport/faultinject"
)

// Kind identifies the wire transport a Port was established over.
type Kind string

const (
	KindInet  Kind = "inet"
	KindInet4 Kind = "inet4"
	KindInet6 Kind = "inet6"
	KindXnet  Kind = "xnet"
	KindWnet  Kind = "wnet"
)

// State is the lifecycle state of a Port.
type State int32

const (
	StatePending State = iota
	StateBroken
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateBroken:
		return "BROKEN"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Peer identifies the far end of a Port.
type Peer struct {
	Host    string
	Address string
	PID     int
}

// CryptoKeyFunc supplies the wire-encryption key negotiated by the Auth
// Sub-protocol, or nil if the port is unencrypted.
type CryptoKeyFunc func() []byte

// Port is a connection endpoint: the transport-layer half of the entity
// spec.md's data model calls Port. Higher layers (XDR codec, compression
// filter, session state machine) build on top of Send/Recv; Port itself only
// guarantees byte-level delivery, keepalive, and state transitions.
type Port struct {
	Kind Kind
	Peer Peer

	conn net.Conn

	state atomic.Int32

	// Aux is the auxiliary port used for async events and out-of-band
	// cancellation once established by the Async/Event Channel component.
	Aux *Port

	// Parent links a child port to the port it was accepted from. Neither
	// ListenPort.Accept nor any other code in this repo sets it, so it is
	// always nil.
	Parent *Port

	writeMu sync.Mutex
	readMu  sync.Mutex

	keepAlive     time.Duration
	dummyInterval time.Duration
	lastActivity  atomic.Int64 // unix nanoseconds

	cryptoKey CryptoKeyFunc
}

// NewPort wraps an established net.Conn as a Port in state PENDING.
func NewPort(conn net.Conn, kind Kind) *Port {
	p := &Port{
		Kind: kind,
		conn: conn,
	}
	p.state.Store(int32(StatePending))
	p.lastActivity.Store(time.Now().UnixNano())

	if tcp, ok := conn.(*net.TCPConn); ok {
		host, _, _ := net.SplitHostPort(tcp.RemoteAddr().String())
		p.Peer = Peer{Host: host, Address: tcp.RemoteAddr().String()}
	} else if conn.RemoteAddr() != nil {
		p.Peer = Peer{Address: conn.RemoteAddr().String()}
	}

	return p
}

// State returns the port's current lifecycle state.
func (p *Port) State() State {
	return State(p.state.Load())
}

func (p *Port) setBroken() {
	p.state.Store(int32(StateBroken))
}

// SetCryptoKey installs the wire-encryption key callback negotiated by the
// auth sub-protocol. A nil func means the port stays in cleartext.
func (p *Port) SetCryptoKey(fn CryptoKeyFunc) {
	p.cryptoKey = fn
}

// CryptoKey returns the currently installed wire-encryption key, or nil.
func (p *Port) CryptoKey() []byte {
	if p.cryptoKey == nil {
		return nil
	}
	return p.cryptoKey()
}

// SetKeepAlive configures the TCP keepalive probe interval and (if the
// connection is a *net.TCPConn) the OS-level SO_KEEPALIVE option.
func (p *Port) SetKeepAlive(interval time.Duration) error {
	p.keepAlive = interval
	tcp, ok := p.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if interval <= 0 {
		return tcp.SetKeepAlive(false)
	}
	if err := tcp.SetKeepAlive(true); err != nil {
		return err
	}
	return tcp.SetKeepAlivePeriod(interval)
}

// SetNoDelay toggles TCP_NODELAY (disabling Nagle's algorithm) when the
// underlying connection is a *net.TCPConn.
func (p *Port) SetNoDelay(on bool) error {
	tcp, ok := p.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcp.SetNoDelay(on)
}

// SetDummyInterval configures how often an idle port writes a dummy packet
// to detect a dead peer ahead of the OS keepalive timer. The actual dummy
// write is driven by the Multiplexed Listener's tick, not by Port itself.
func (p *Port) SetDummyInterval(d time.Duration) {
	p.dummyInterval = d
}

// DummyDue reports whether the port's dummy-packet interval has elapsed
// since the last send or receive.
func (p *Port) DummyDue() bool {
	if p.dummyInterval <= 0 {
		return false
	}
	last := time.Unix(0, p.lastActivity.Load())
	return time.Since(last) >= p.dummyInterval
}

// Send writes every byte of b to the wire or fails. Unlike a single
// net.Conn.Write call, it loops until the full buffer is written (Go's
// runtime already retries EAGAIN/EINTR internally, but a short write from an
// intermediate layer such as a compression filter must still be completed
// here rather than surfaced to the caller).
func (p *Port) Send(b []byte) error {
	if p.State() != StatePending {
		return protoerr.NewNetworkError(fmt.Sprintf("send on %s port to %s", p.State(), p.Peer.Address), errPortNotUsable)
	}

	if faultinject.Trigger() {
		p.setBroken()
		return protoerr.NewNetworkError(fmt.Sprintf("fault-injected send failure to %s", p.Peer.Address), errFaultInjected)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for len(b) > 0 {
		n, err := p.conn.Write(b)
		if err != nil {
			p.setBroken()
			return protoerr.NewNetworkError(fmt.Sprintf("write to %s", p.Peer.Address), err)
		}
		b = b[n:]
	}

	p.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// SendPartial writes b without implying a logical flush boundary. Callers
// that batch several packets together (the session layer's deferred queue)
// use SendPartial for every packet but the last, then Send for the one that
// must complete the round trip; both end up as plain writes at this layer
// since Go's net.Conn has no partial-flush notion of its own.
func (p *Port) SendPartial(b []byte) error {
	return p.Send(b)
}

// Recv reads up to len(buf) bytes into buf, returning at least one byte or
// an error. n == 0 with a nil error never happens; an orderly peer close is
// reported as a network error with the port marked BROKEN, matching the
// "n == 0 means peer closed" contract non-Go transports expose.
func (p *Port) Recv(buf []byte) (int, error) {
	if p.State() != StatePending {
		return 0, protoerr.NewNetworkError(fmt.Sprintf("recv on %s port from %s", p.State(), p.Peer.Address), errPortNotUsable)
	}

	if faultinject.Trigger() {
		p.setBroken()
		return 0, protoerr.NewNetworkError(fmt.Sprintf("fault-injected recv failure from %s", p.Peer.Address), errFaultInjected)
	}

	p.readMu.Lock()
	defer p.readMu.Unlock()

	n, err := p.conn.Read(buf)
	if n > 0 {
		p.lastActivity.Store(time.Now().UnixNano())
	}
	if err != nil {
		p.setBroken()
		if errors.Is(err, net.ErrClosed) {
			return n, protoerr.NewNetworkError(fmt.Sprintf("peer %s closed connection", p.Peer.Address), err)
		}
		return n, protoerr.NewNetworkError(fmt.Sprintf("read from %s", p.Peer.Address), err)
	}
	if n == 0 {
		p.setBroken()
		return 0, protoerr.NewNetworkError(fmt.Sprintf("peer %s orderly close", p.Peer.Address), errPeerClosed)
	}

	return n, nil
}

// Close closes the port. A graceful close lets any already-queued bytes
// drain (Go's TCP stack applies SO_LINGER semantics automatically);
// graceful=false closes the underlying file descriptor immediately, which
// the OS turns into an RST if unacknowledged data remains.
func (p *Port) Close(graceful bool) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.State() == StateDisconnected {
		return nil
	}

	if !graceful {
		if tcp, ok := p.conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
	}

	p.state.Store(int32(StateDisconnected))
	return p.conn.Close()
}

// Conn exposes the underlying net.Conn for layers (XDR codec, compression
// filter) that need a plain io.Reader/io.Writer rather than Port's
// error-wrapped Send/Recv.
func (p *Port) Conn() net.Conn {
	return p.conn
}

// Write implements io.Writer by delegating to Send, so a Port can be handed
// directly to xdr.NewEncoder or a compression filter.
func (p *Port) Write(b []byte) (int, error) {
	if err := p.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read implements io.Reader by delegating to Recv, so a Port can be handed
// directly to xdr.NewDecoder or a compression filter.
func (p *Port) Read(b []byte) (int, error) {
	return p.Recv(b)
}

var (
	errPortNotUsable  = errors.New("port is not in state PENDING")
	errPeerClosed     = errors.New("peer closed connection")
	errFaultInjected  = errors.New("fault injected by faultinject.Trigger")
	errOOBUnsupported = errors.New("out-of-band send/recv unsupported on this connection or platform")
)
