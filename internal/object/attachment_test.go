package object

import (
	"testing"

	"github.com/fbremote/fbremote/internal/auth"
	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentManager_CreateAndLookup(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("employee.fdb", wire.ParamBlock{}, &auth.Identity{Username: "SYSDBA"})
	require.NotZero(t, att.Handle)

	got, err := am.Lookup(att.Handle)
	require.NoError(t, err)
	assert.Equal(t, "employee.fdb", got.DBName)
}

func TestAttachmentManager_LookupUnknownIsBadDB(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	_, err := am.Lookup(42)
	require.Error(t, err)
	var pe *protoerr.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, protoerr.KindProtocol, pe.Kind())
}

func TestAttachmentManager_DetachReleasesChildren(t *testing.T) {
	txm := NewTransactionManager()
	am := NewAttachmentManager(txm)
	att := am.Create("employee.fdb", wire.ParamBlock{}, nil)

	tx := txm.Start(att, wire.ParamBlock{})
	st := am.StatementManager().Allocate(att)
	bl := am.BlobManager().Create(att, tx.Handle, wire.ParamBlock{})

	require.NoError(t, am.Detach(att.Handle))

	_, err := txm.Lookup(tx.Handle)
	assert.Error(t, err)
	_, err = am.StatementManager().Lookup(st.Handle)
	assert.Error(t, err)
	_, err = am.BlobManager().Lookup(bl.Handle)
	assert.Error(t, err)
	_, err = am.Lookup(att.Handle)
	assert.Error(t, err)
}

func TestAttachmentManager_SecondDetachIsNoop(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("employee.fdb", wire.ParamBlock{}, nil)

	require.NoError(t, am.Detach(att.Handle))
	assert.NoError(t, am.Detach(att.Handle))
}

func TestAttachmentManager_Ping(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("employee.fdb", wire.ParamBlock{}, nil)
	assert.NoError(t, am.Ping(att.Handle))
	assert.Error(t, am.Ping(999))
}

func TestAttachment_MarkBroken(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("employee.fdb", wire.ParamBlock{}, nil)
	assert.False(t, att.Broken())
	att.MarkBroken()
	assert.True(t, att.Broken())
}
