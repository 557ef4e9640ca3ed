package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/stretchr/testify/require"
)

// newConnOnServer is like newRig but lets the caller share one Server
// (and so one aux rendezvous table) across a primary and a callback port.
func newConnOnServer(t *testing.T, srv *Server) (*clientRig, *Connection) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	port := transport.NewPort(serverConn, transport.KindInet)
	conn := srv.NewConnection(port).(*Connection)
	rig := &clientRig{enc: xdr.NewEncoder(clientConn), dec: xdr.NewDecoder(clientConn)}
	return rig, conn
}

// TestRendezvous_AuxConnectDeliversQueuedEvent attaches, dials back in with
// the token the attach response handed out, registers an event, and
// asserts the server pushes the event notification over the aux port
// rather than the sync one.
func TestRendezvous_AuxConnectDeliversQueuedEvent(t *testing.T) {
	srv := New(nil)

	primaryRig, primaryConn := newConnOnServer(t, srv)
	primaryDone := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		primaryConn.Serve(ctx)
		close(primaryDone)
	}()

	primaryRig.connect(t)

	attachResp := primaryRig.roundTrip(t, &wire.Packet{
		Op:     wire.OpAttach,
		Attach: &wire.AttachPacket{DBName: "employee.fdb"},
	})
	require.Nil(t, attachResp.Response.Status)
	dbHandle := attachResp.Response.ObjectHandle
	token := string(attachResp.Response.Data)
	require.NotEmpty(t, token)

	auxRig, auxConn := newConnOnServer(t, srv)
	auxDone := make(chan struct{})
	go func() {
		auxConn.Serve(ctx)
		close(auxDone)
	}()
	require.NoError(t, wire.Encode(auxRig.enc, &wire.Packet{
		Op:         wire.OpAuxConnect,
		AuxConnect: &wire.AuxConnectPacket{Token: token},
	}))

	select {
	case <-auxDone:
	case <-time.After(2 * time.Second):
		t.Fatal("aux connection handler did not return after handoff")
	}

	// The resolved port is wired onto the primary session from a background
	// goroutine (startAsyncChannel); wait for that handoff to finish before
	// relying on it for event delivery.
	require.Eventually(t, func() bool {
		return primaryConn.sess.Port().Aux != nil
	}, 2*time.Second, time.Millisecond)

	queResp := primaryRig.roundTrip(t, &wire.Packet{
		Op:    wire.OpQueEvents,
		Event: &wire.EventPacket{AttachmentHandle: dbHandle, Names: []string{"table_changed"}},
	})
	require.Nil(t, queResp.Response.Status)
	eventHandle := queResp.Response.ObjectHandle
	require.NotZero(t, eventHandle)

	// Cancelling a registration that never fired delivers a fire-once
	// zero-length notification (see object.EventManager.Cancel); the write
	// happens synchronously inside the server's cancel_events handler, so a
	// reader must already be parked on the aux pipe before the cancel round
	// trip is sent, or the two block on each other.
	evCh := make(chan *wire.Packet, 1)
	decErrCh := make(chan error, 1)
	go func() {
		p, err := wire.Decode(auxRig.dec)
		if err != nil {
			decErrCh <- err
			return
		}
		evCh <- p
	}()

	cancelResp := primaryRig.roundTrip(t, &wire.Packet{
		Op:    wire.OpCancelEvents,
		Event: &wire.EventPacket{EventID: eventHandle},
	})
	require.Nil(t, cancelResp.Response.Status)

	var evPacket *wire.Packet
	select {
	case evPacket = <-evCh:
	case err := <-decErrCh:
		t.Fatalf("decode event packet: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("event notification never arrived on aux port")
	}
	require.Equal(t, wire.OpEvent, evPacket.Op)
	require.NotNil(t, evPacket.Event)
	require.Equal(t, eventHandle, evPacket.Event.EventID)

	require.NoError(t, wire.Encode(primaryRig.enc, &wire.Packet{Op: wire.OpExit}))
	select {
	case <-primaryDone:
	case <-time.After(2 * time.Second):
		t.Fatal("primary connection did not return after exit")
	}
}
