package object

import (
	"sync"

	"github.com/fbremote/fbremote/internal/wire"
)

// TxState is a transaction's lifecycle stage.
type TxState int

const (
	TxActive TxState = iota
	TxPrepared
	TxCommitted
	TxRolledBack
)

// Transaction is one started transaction. Its handle is routable across
// every attachment registered with the same TransactionManager (the
// distributed-transaction-join case), so the manager - not the
// Attachment - owns the registry.
type Transaction struct {
	Handle           int32
	AttachmentHandle int32
	TPB              wire.ParamBlock

	mu    sync.Mutex
	state TxState
}

// State returns the transaction's current lifecycle stage.
func (t *Transaction) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TransactionManager tracks every transaction live on a connection, shared
// across every attachment so a transaction handle started against one
// attachment can be joined from another (DTC join).
type TransactionManager struct {
	registry *Registry[Transaction]
}

// NewTransactionManager returns an empty manager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{registry: NewRegistry[Transaction]()}
}

// Start begins a transaction against att with the given TPB and registers
// it both in the manager and in att's own child registry so Detach can find
// it.
func (m *TransactionManager) Start(att *Attachment, tpb wire.ParamBlock) *Transaction {
	tx := &Transaction{AttachmentHandle: att.Handle, TPB: tpb, state: TxActive}
	tx.Handle = m.registry.Register(tx)
	att.Transactions.Adopt(tx.Handle, tx)
	return tx
}

// Lookup resolves a handle to its transaction, raising bad-trans on a miss.
func (m *TransactionManager) Lookup(handle int32) (*Transaction, error) {
	tx, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadTrans(handle)
	}
	return tx, nil
}

// Commit ends the transaction. retaining keeps the handle alive and resets
// it to TxActive for reuse, matching commit_retaining's reuse-the-handle
// semantics; otherwise the handle is released from the manager.
func (m *TransactionManager) Commit(handle int32, retaining bool) error {
	tx, err := m.Lookup(handle)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = TxCommitted
	if retaining {
		tx.state = TxActive
		return nil
	}
	m.registry.Release(handle)
	return nil
}

// Rollback is Commit's mirror image for the failure path.
func (m *TransactionManager) Rollback(handle int32, retaining bool) error {
	tx, err := m.Lookup(handle)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = TxRolledBack
	if retaining {
		tx.state = TxActive
		return nil
	}
	m.registry.Release(handle)
	return nil
}

// Prepare marks the transaction ready for the second phase of a two-phase
// commit. The handle stays registered; Commit or Rollback still finishes it.
func (m *TransactionManager) Prepare(handle int32) error {
	tx, err := m.Lookup(handle)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = TxPrepared
	return nil
}

// Release drops handle from the manager without changing its state,
// matching the close-on-broken-connection contract: the client-side
// bookkeeping goes away even though nothing was actually committed.
func (m *TransactionManager) Release(handle int32) {
	m.registry.Release(handle)
}
