package object

import (
	"testing"

	"github.com/fbremote/fbremote/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_TransactionSharedAcrossAttachments(t *testing.T) {
	conn := NewConnection()
	att1 := conn.Attachments.Create("db1", wire.ParamBlock{}, nil)
	att2 := conn.Attachments.Create("db2", wire.ParamBlock{}, nil)

	tx := conn.Transactions.Start(att1, wire.ParamBlock{})

	got, err := conn.Transactions.Lookup(tx.Handle)
	require.NoError(t, err)
	assert.Equal(t, att1.Handle, got.AttachmentHandle)
	assert.NotEqual(t, att1.Handle, att2.Handle)
}

func TestNewConnection_IndependentManagers(t *testing.T) {
	conn := NewConnection()
	assert.NotNil(t, conn.Attachments)
	assert.NotNil(t, conn.Services)
	assert.NotNil(t, conn.Batches)
	assert.NotNil(t, conn.Attachments.EventManager())
}
