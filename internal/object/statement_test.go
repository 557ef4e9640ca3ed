package object

import (
	"testing"

	"github.com/fbremote/fbremote/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementManager_AllocatePrepare(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	sm := am.StatementManager()

	st := sm.Allocate(att)
	require.NotZero(t, st.Handle)

	st.Prepare(1, 3, "select * from employee")
	assert.Equal(t, "select * from employee", st.SQL())
}

func TestStatementManager_LookupUnknownIsBadStmt(t *testing.T) {
	sm := NewStatementManager()
	_, err := sm.Lookup(7)
	assert.Error(t, err)
}

func TestStatement_SetCursor(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	sm := am.StatementManager()
	st := sm.Allocate(att)

	assert.Equal(t, "", st.Cursor())
	st.SetCursor("emp_cur")
	assert.Equal(t, "emp_cur", st.Cursor())
}

func TestStatement_FetchExhaustsRowSourceThenSticksEOF(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	sm := am.StatementManager()
	st := sm.Allocate(att)

	rows := [][]byte{[]byte("row1"), []byte("row2")}
	calls := 0
	source := func() ([]byte, bool, error) {
		calls++
		if len(rows) == 0 {
			return nil, true, nil
		}
		r := rows[0]
		rows = rows[1:]
		return r, false, nil
	}
	st.Execute(1, nil, nil, source)

	resp, err := st.Fetch(10)
	require.NoError(t, err)
	assert.True(t, resp.EOF)
	assert.Equal(t, [][]byte{[]byte("row1"), []byte("row2")}, resp.Messages)

	callsAfterFirstFetch := calls
	resp2, err := st.Fetch(10)
	require.NoError(t, err)
	assert.True(t, resp2.EOF)
	assert.Empty(t, resp2.Messages)
	assert.Equal(t, callsAfterFirstFetch, calls, "fetch after EOF must not touch the row source again")
}

func TestStatement_FetchBatchesByCount(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	sm := am.StatementManager()
	st := sm.Allocate(att)

	n := 0
	source := func() ([]byte, bool, error) {
		n++
		return []byte{byte(n)}, false, nil
	}
	st.Execute(1, nil, nil, source)

	resp, err := st.Fetch(3)
	require.NoError(t, err)
	assert.False(t, resp.EOF)
	assert.Len(t, resp.Messages, 3)
}

func TestStatement_ExecuteResetsEOF(t *testing.T) {
	am := NewAttachmentManager(NewTransactionManager())
	att := am.Create("db", wire.ParamBlock{}, nil)
	sm := am.StatementManager()
	st := sm.Allocate(att)

	st.Execute(1, nil, nil, func() ([]byte, bool, error) { return nil, true, nil })
	resp, _ := st.Fetch(1)
	assert.True(t, resp.EOF)

	st.Execute(1, nil, nil, func() ([]byte, bool, error) { return []byte("x"), false, nil })
	resp2, err := st.Fetch(1)
	require.NoError(t, err)
	assert.False(t, resp2.EOF)
}
