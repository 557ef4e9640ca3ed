package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/fbremote/fbremote/internal/protoerr"
	"golang.org/x/sys/unix"
)

// ListenConfig controls how a ListenPort binds its socket.
type ListenConfig struct {
	// Kind selects the address family: inet (dual-stack where the OS
	// allows it), inet4 (IPv4 only), or inet6 (IPv6 only).
	Kind Kind

	// DualStack, when Kind is KindInet6, clears IPV6_V6ONLY so the socket
	// also accepts IPv4-mapped connections.
	DualStack bool
}

// ListenPort wraps a net.Listener as the accept side of the Transport
// Layer: a listening Port produces child Ports, one per accepted
// connection, via Accept.
type ListenPort struct {
	ln     net.Listener
	kind   Kind
	config ListenConfig
}

// Listen binds address (host:port) according to cfg and returns a
// ListenPort ready to Accept connections.
func Listen(ctx context.Context, address string, cfg ListenConfig) (*ListenPort, error) {
	network := "tcp"
	switch cfg.Kind {
	case KindInet4:
		network = "tcp4"
	case KindInet6:
		network = "tcp6"
	case KindInet, "":
		network = "tcp"
	default:
		return nil, protoerr.NewVersionMismatchError(fmt.Sprintf("transport kind %q", cfg.Kind))
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			if cfg.Kind != KindInet6 {
				return nil
			}
			var sockErr error
			err := c.Control(func(fd uintptr) {
				v6only := 1
				if cfg.DualStack {
					v6only = 0
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, protoerr.NewNetworkError(fmt.Sprintf("listen on %s %s", network, address), err)
	}

	return &ListenPort{ln: ln, kind: cfg.Kind, config: cfg}, nil
}

// Accept blocks until a new connection arrives and returns it wrapped as a
// child Port. The returned Port inherits no configuration (keepalive,
// dummy interval, crypto key) from the listener; the caller applies those
// after accept, mirroring how the session layer negotiates them per
// connection during the auth handshake.
func (lp *ListenPort) Accept() (*Port, error) {
	conn, err := lp.ln.Accept()
	if err != nil {
		return nil, protoerr.NewNetworkError("accept", err)
	}
	return NewPort(conn, lp.kind), nil
}

// Addr returns the address the listener is bound to.
func (lp *ListenPort) Addr() net.Addr {
	return lp.ln.Addr()
}

// Close stops accepting new connections. Already-accepted Ports are
// unaffected.
func (lp *ListenPort) Close() error {
	return lp.ln.Close()
}
