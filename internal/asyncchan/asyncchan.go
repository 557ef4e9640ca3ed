// Package asyncchan implements the Async/Event Channel: the auxiliary port
// a client connects back on after attach, carrying server-pushed event
// notifications and out-of-band cancellation, independent of the
// synchronous request/response port the Session State Machine drives.
package asyncchan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/fbremote/fbremote/internal/object"
	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
)

// Channel owns one attachment's auxiliary port: the event thread that
// loops recv -> decode -> dispatch, and the cancel path that rides either
// the sync port's OOB byte or, failing that, a cancel packet sent directly
// on the aux port.
type Channel struct {
	sync   *transport.Port
	aux    *transport.Port
	events *object.EventManager

	asyncInProgress atomic.Bool
}

// New wires a Channel to the attachment's sync port (for OOB cancel) and
// its already-connected-back aux port (for events and the packet-cancel
// fallback). events is the attachment's event manager; TeardownAll on it is
// invoked on any aux-port failure or an explicit exit/disconnect.
func New(sync, aux *transport.Port, events *object.EventManager) *Channel {
	return &Channel{sync: sync, aux: aux, events: events}
}

// Run drives the event thread until the aux port fails, the peer sends
// exit/disconnect, or ctx is cancelled. Every branch that ends the loop
// first fires a zero-length notification on every still-registered event:
// "server gone, retry from scratch".
func (c *Channel) Run(ctx context.Context) error {
	dec := xdr.NewDecoder(c.aux)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.aux.Close(false)
		case <-done:
		}
	}()

	for {
		p, err := wire.Decode(dec)
		if err != nil {
			c.events.TeardownAll()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || protoerr.KindOf(err) == protoerr.KindNetwork {
				return nil
			}
			return err
		}

		switch p.Op {
		case wire.OpEvent:
			c.dispatchEvent(p.Event)
		case wire.OpExit, wire.OpDisconnect:
			c.events.TeardownAll()
			return nil
		default:
			// Legal inbound ops on the aux channel are event/exit/disconnect
			// only; anything else is ignored rather than torn down, since a
			// stray packet here should not kill live event registrations.
		}
	}
}

func (c *Channel) dispatchEvent(ev *wire.EventPacket) {
	if ev == nil {
		return
	}
	reg, err := c.events.Lookup(ev.EventID)
	if err != nil {
		return
	}
	reg.Fire(ev.Counts)
}

// errAsyncActive is returned when a second cancel races in while one is
// already being delivered; the caller is expected to treat it as a fast,
// non-retryable failure rather than block.
var errAsyncActive = errors.New("async active")

// Cancel delivers one cancellation of the given kind. It prefers the sync
// port's out-of-band urgent byte when the platform and negotiated features
// support it, and falls back to an in-band cancel packet on the aux port
// otherwise - matching the OOB-with-fallback rule the transport layer
// documents. Only one cancel may be in flight at a time; a racing second
// call fails fast instead of waiting.
func (c *Channel) Cancel(kind wire.CancelKind) error {
	if !c.asyncInProgress.CompareAndSwap(false, true) {
		return protoerr.NewProtocolError("async active", errAsyncActive)
	}
	defer c.asyncInProgress.Store(false)

	if err := c.sync.SendOOB(byte(kind)); err == nil {
		return nil
	}

	enc := xdr.NewEncoder(c.aux)
	pkt := &wire.Packet{Op: wire.OpCancel, Cancel: &wire.CancelPacket{Kind: kind}}
	if err := wire.Encode(enc, pkt); err != nil {
		return fmt.Errorf("asyncchan: encode cancel packet: %w", err)
	}
	return nil
}
