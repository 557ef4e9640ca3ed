package object

import (
	"testing"

	"github.com/fbremote/fbremote/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceManager_AttachAndLookup(t *testing.T) {
	sm := NewServiceManager()
	svc := sm.Attach("service_mgr", wire.ParamBlock{}.WithString(0x1c, "SYSDBA"))
	require.NotZero(t, svc.Handle)

	got, err := sm.Lookup(svc.Handle)
	require.NoError(t, err)
	assert.Equal(t, "service_mgr", got.Name)
}

func TestServiceManager_LookupUnknownIsBadSvc(t *testing.T) {
	sm := NewServiceManager()
	_, err := sm.Lookup(1)
	assert.Error(t, err)
}

func TestService_StartFinish(t *testing.T) {
	sm := NewServiceManager()
	svc := sm.Attach("service_mgr", wire.ParamBlock{})

	assert.False(t, svc.Running())
	require.NoError(t, svc.Start(nil))
	assert.True(t, svc.Running())
	svc.Finish()
	assert.False(t, svc.Running())
}

func TestServiceManager_DetachIsIdempotent(t *testing.T) {
	sm := NewServiceManager()
	svc := sm.Attach("service_mgr", wire.ParamBlock{})
	require.NoError(t, sm.Detach(svc.Handle))
	assert.NoError(t, sm.Detach(svc.Handle))
}

func TestService_StartParsesRequestedLength(t *testing.T) {
	sm := NewServiceManager()
	svc := sm.Attach("service_mgr", wire.ParamBlock{})

	sendItems := wire.ParamBlock{Version: 2}.WithString(spbTagLength, "64k").Encode()
	require.NoError(t, svc.Start(sendItems))
	assert.Equal(t, int64(64*1024), svc.RequestedLength())
}

func TestService_StartWithNoLengthTagLeavesItZero(t *testing.T) {
	sm := NewServiceManager()
	svc := sm.Attach("service_mgr", wire.ParamBlock{})

	require.NoError(t, svc.Start(nil))
	assert.Equal(t, int64(0), svc.RequestedLength())
}
