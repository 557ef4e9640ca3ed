package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// Dialer establishes outbound Ports, the client side of the Transport
// Layer. It exists mainly so tests and the attachment manager can share one
// timeout policy instead of calling net.Dial directly.
type Dialer struct {
	Timeout time.Duration
}

// NewDialer returns a Dialer with a sane default connect timeout.
func NewDialer() *Dialer {
	return &Dialer{Timeout: 30 * time.Second}
}

// Dial connects to address over the given transport kind and returns the
// resulting Port in state PENDING.
func (d *Dialer) Dial(ctx context.Context, address string, kind Kind) (*Port, error) {
	network := "tcp"
	switch kind {
	case KindInet4:
		network = "tcp4"
	case KindInet6:
		network = "tcp6"
	case KindInet, "":
		network = "tcp"
	default:
		return nil, protoerr.NewVersionMismatchError(fmt.Sprintf("transport kind %q", kind))
	}

	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, protoerr.NewNetworkError(fmt.Sprintf("dial %s %s", network, address), err)
	}

	return NewPort(conn, kind), nil
}
