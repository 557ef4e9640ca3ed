package transport

import (
	"net"
	"testing"
	"time"

	"github.com/fbremote/fbremote/internal/transport/faultinject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipePorts(t *testing.T) (*Port, *Port) {
	t.Helper()
	c1, c2 := net.Pipe()
	return NewPort(c1, KindInet), NewPort(c2, KindInet)
}

func TestSendRecv_RoundTrip(t *testing.T) {
	client, server := pipePorts(t)
	defer client.Close(true)
	defer server.Close(true)

	done := make(chan error, 1)
	go func() {
		done <- client.Send([]byte("hello"))
	}()

	buf := make([]byte, 16)
	n, err := server.Recv(buf)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRecv_PeerClose(t *testing.T) {
	client, server := pipePorts(t)
	defer server.Close(true)

	require.NoError(t, client.Close(true))

	buf := make([]byte, 16)
	_, err := server.Recv(buf)
	assert.Error(t, err)
	assert.Equal(t, StateBroken, server.State())
}

func TestSend_AfterClose_Fails(t *testing.T) {
	client, server := pipePorts(t)
	defer server.Close(true)

	require.NoError(t, client.Close(true))
	err := client.Send([]byte("x"))
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	client, server := pipePorts(t)
	defer server.Close(true)

	require.NoError(t, client.Close(true))
	assert.NoError(t, client.Close(true))
}

func TestDummyDue(t *testing.T) {
	client, server := pipePorts(t)
	defer client.Close(true)
	defer server.Close(true)

	assert.False(t, client.DummyDue())

	client.SetDummyInterval(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, client.DummyDue())

	client.SetDummyInterval(0)
	assert.False(t, client.DummyDue())
}

func TestCryptoKey_DefaultsToNil(t *testing.T) {
	client, server := pipePorts(t)
	defer client.Close(true)
	defer server.Close(true)

	assert.Nil(t, client.CryptoKey())

	client.SetCryptoKey(func() []byte { return []byte("secret") })
	assert.Equal(t, []byte("secret"), client.CryptoKey())
}

func TestSend_FaultInjected(t *testing.T) {
	client, server := pipePorts(t)
	defer client.Close(true)
	defer server.Close(true)

	faultinject.Set(1)
	defer faultinject.Reset()

	err := client.Send([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, StateBroken, client.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "PENDING", StatePending.String())
	assert.Equal(t, "BROKEN", StateBroken.String())
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
}
