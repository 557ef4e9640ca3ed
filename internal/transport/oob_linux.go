//go:build linux

package transport

import (
	"fmt"
	"net"
	"syscall"

	"github.com/fbremote/fbremote/internal/protoerr"
	"golang.org/x/sys/unix"
)

// SendOOB sends a single out-of-band byte over the port's socket, used by
// the session layer to raise an asynchronous cancel request ahead of
// whatever in-band data the peer is currently reading. It requires the
// underlying connection to be a *net.TCPConn; any other connection type
// returns an unsupported error so the caller falls back to an in-band
// cancel packet.
func (p *Port) SendOOB(b byte) error {
	tcp, ok := p.conn.(*net.TCPConn)
	if !ok {
		return errOOBUnsupported
	}

	raw, err := tcp.SyscallConn()
	if err != nil {
		return protoerr.NewNetworkError("oob send: syscall conn", err)
	}

	var sendErr error
	ctlErr := raw.Control(func(fd uintptr) {
		_, sendErr = unix.Send(int(fd), []byte{b}, unix.MSG_OOB)
	})
	if ctlErr != nil {
		return protoerr.NewNetworkError("oob send: control", ctlErr)
	}
	if sendErr != nil {
		return protoerr.NewNetworkError(fmt.Sprintf("oob send to %s", p.Peer.Address), sendErr)
	}
	return nil
}

// RecvOOB reports whether urgent out-of-band data is currently pending on
// the socket (SIOCATMARK), without consuming it. The cancel-detection loop
// polls this before a normal Recv to decide whether the next packet read
// should be treated as a cancel request.
func (p *Port) RecvOOB() (bool, error) {
	tcp, ok := p.conn.(*net.TCPConn)
	if !ok {
		return false, errOOBUnsupported
	}

	raw, err := tcp.SyscallConn()
	if err != nil {
		return false, protoerr.NewNetworkError("oob recv: syscall conn", err)
	}

	var atMark int
	var ctlErr2 error
	ctlErr := raw.Control(func(fd uintptr) {
		atMark, ctlErr2 = unix.IoctlGetInt(int(fd), syscall.SIOCATMARK)
	})
	if ctlErr != nil {
		return false, protoerr.NewNetworkError("oob recv: control", ctlErr)
	}
	if ctlErr2 != nil {
		return false, protoerr.NewNetworkError("oob recv: ioctl SIOCATMARK", ctlErr2)
	}
	return atMark != 0, nil
}
