package object

import (
	"sync"

	"github.com/fbremote/fbremote/internal/wire"
)

// rowBufferPoolSize is the depth of the circular row-buffer pool a prepared
// statement pipelines fetch results through. Sized small and fixed rather
// than negotiated, since this engine does not implement the output-format
// BLR well enough to compute a real per-row byte budget; a real deployment
// would size this from the negotiated format like the protocol does.
const rowBufferPoolSize = 8

// RowSource produces the next row for a cursor. next==nil and eof==true
// signals end of cursor. The statement manager has no query execution of
// its own - that's explicitly out of scope - so every Statement is driven
// by a caller-supplied RowSource standing in for the actual engine.
type RowSource func() (row []byte, eof bool, err error)

// Statement is one prepared statement: its SQL text, the transaction it is
// currently bound to, its named cursor (if any), and the circular pool of
// row buffers fetch pipelines rows through.
type Statement struct {
	Handle           int32
	AttachmentHandle int32

	mu                sync.Mutex
	transactionHandle int32
	dialect           int32
	sql               string
	cursor            string
	inputFormat       []byte
	outputFormat      []byte
	eof               bool
	source            RowSource
	pool              [rowBufferPoolSize][]byte
	poolHead          int
}

// StatementManager tracks every prepared statement live on a connection.
type StatementManager struct {
	registry *Registry[Statement]
}

// NewStatementManager returns an empty manager.
func NewStatementManager() *StatementManager {
	return &StatementManager{registry: NewRegistry[Statement]()}
}

// Allocate reserves a statement handle under att, ahead of Prepare filling
// in its SQL text - mirroring allocate_statement preceding prepare_statement
// on the wire.
func (m *StatementManager) Allocate(att *Attachment) *Statement {
	st := &Statement{AttachmentHandle: att.Handle}
	st.Handle = m.registry.Register(st)
	att.Statements.Adopt(st.Handle, st)
	return st
}

// Lookup resolves a handle to its statement, raising bad-stmt on a miss.
func (m *StatementManager) Lookup(handle int32) (*Statement, error) {
	st, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadStmt(handle)
	}
	return st, nil
}

// Prepare fills in a previously allocated statement's text, dialect, and
// binding transaction. A fresh Prepare resets any cursor and EOF state from
// a previous execution of the same handle.
func (st *Statement) Prepare(transactionHandle, dialect int32, sql string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.transactionHandle = transactionHandle
	st.dialect = dialect
	st.sql = sql
	st.cursor = ""
	st.eof = false
	st.source = nil
}

// SQL returns the statement's prepared text.
func (st *Statement) SQL() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sql
}

// SetCursor names the statement's cursor for positioned operations.
func (st *Statement) SetCursor(name string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cursor = name
}

// Cursor returns the statement's cursor name, empty if none was set.
func (st *Statement) Cursor() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cursor
}

// Execute (re)binds the statement to a transaction and input/output
// formats, negotiated fresh per the protocol's per-fetch renegotiation
// rule, and clears EOF so a subsequent Fetch runs the cursor again.
func (st *Statement) Execute(transactionHandle int32, inFormat, outFormat []byte, source RowSource) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.transactionHandle = transactionHandle
	st.inputFormat = inFormat
	st.outputFormat = outFormat
	st.eof = false
	st.source = source
	st.poolHead = 0
}

// Fetch pulls up to count rows into the circular buffer pool and returns
// them as a batch, honoring P3: once EOF has been observed, every
// subsequent Fetch returns an empty, EOF batch without calling the row
// source again.
func (st *Statement) Fetch(count int) (*wire.SQLResponsePacket, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.eof || st.source == nil {
		return &wire.SQLResponsePacket{EOF: true}, nil
	}

	var rows [][]byte
	for i := 0; i < count; i++ {
		row, eof, err := st.source()
		if err != nil {
			return nil, err
		}
		if eof {
			st.eof = true
			break
		}
		st.pool[st.poolHead%rowBufferPoolSize] = row
		st.poolHead++
		rows = append(rows, row)
	}

	return &wire.SQLResponsePacket{Messages: rows, EOF: st.eof}, nil
}

// Release drops the statement's handle. Its parent Attachment's registry
// entry is released separately by Detach when walking children; this
// method is for a direct free_statement from the client.
func (m *StatementManager) Release(handle int32) {
	m.registry.Release(handle)
}
