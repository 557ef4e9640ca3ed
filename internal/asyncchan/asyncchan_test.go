package asyncchan

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fbremote/fbremote/internal/object"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auxPair(t *testing.T) (*transport.Port, *transport.Port) {
	t.Helper()
	c1, c2 := net.Pipe()
	return transport.NewPort(c1, transport.KindInet), transport.NewPort(c2, transport.KindInet)
}

func TestChannel_DispatchesEventNotification(t *testing.T) {
	serverAux, clientAux := auxPair(t)
	syncClient, _ := auxPair(t)

	am := object.NewAttachmentManager(object.NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	em := am.EventManager()

	fired := make(chan []uint32, 1)
	ev := em.Register(att, []string{"new_order"}, func(counts []uint32) { fired <- counts })

	ch := New(syncClient, clientAux, em)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	enc := xdr.NewEncoder(serverAux)
	require.NoError(t, wire.Encode(enc, &wire.Packet{
		Op:    wire.OpEvent,
		Event: &wire.EventPacket{EventID: ev.Handle, Counts: []uint32{5}},
	}))

	select {
	case counts := <-fired:
		assert.Equal(t, []uint32{5}, counts)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}

	cancel()
	<-done
}

func TestChannel_ExitTearsDownAllEvents(t *testing.T) {
	serverAux, clientAux := auxPair(t)
	syncClient, _ := auxPair(t)

	am := object.NewAttachmentManager(object.NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	em := am.EventManager()

	fired := make(chan []uint32, 1)
	em.Register(att, []string{"new_order"}, func(counts []uint32) { fired <- counts })

	ch := New(syncClient, clientAux, em)
	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()

	enc := xdr.NewEncoder(serverAux)
	require.NoError(t, wire.Encode(enc, &wire.Packet{Op: wire.OpExit}))

	select {
	case counts := <-fired:
		assert.Nil(t, counts)
	case <-time.After(2 * time.Second):
		t.Fatal("teardown notification was not delivered")
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after exit")
	}
}

func TestChannel_PeerCloseTearsDownEvents(t *testing.T) {
	serverAux, clientAux := auxPair(t)
	syncClient, _ := auxPair(t)

	am := object.NewAttachmentManager(object.NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	em := am.EventManager()

	fired := make(chan []uint32, 1)
	em.Register(att, []string{"new_order"}, func(counts []uint32) { fired <- counts })

	ch := New(syncClient, clientAux, em)
	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()

	require.NoError(t, serverAux.Close(true))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown notification was not delivered after peer close")
	}

	select {
	case err := <-done:
		assert.NoError(t, err, "an ordinary peer close must not surface as a caller-visible error")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after peer close")
	}
}

func TestChannel_CancelFallsBackToAuxPacketWhenOOBUnsupported(t *testing.T) {
	syncClient, _ := auxPair(t)
	clientAux, serverAux := auxPair(t)

	em := object.NewEventManager()
	ch := New(syncClient, clientAux, em)

	done := make(chan error, 1)
	go func() {
		dec := xdr.NewDecoder(serverAux)
		p, err := wire.Decode(dec)
		if err != nil {
			done <- err
			return
		}
		if p.Op != wire.OpCancel {
			t.Errorf("expected cancel packet, got %v", p.Op)
		}
		done <- nil
	}()

	require.NoError(t, ch.Cancel(wire.CancelRaise))
	require.NoError(t, <-done)
}

func TestChannel_CancelFailsFastWhenAlreadyInProgress(t *testing.T) {
	syncClient, _ := auxPair(t)
	clientAux, _ := auxPair(t)

	em := object.NewEventManager()
	ch := New(syncClient, clientAux, em)
	ch.asyncInProgress.Store(true)

	err := ch.Cancel(wire.CancelRaise)
	assert.Error(t, err)
}
