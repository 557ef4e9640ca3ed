package object

import (
	"sync"

	"github.com/fbremote/fbremote/internal/auth"
	"github.com/fbremote/fbremote/internal/wire"
)

// Attachment is one open (or created) database. Transactions, statements,
// BLOBs, and event registrations opened under it are tracked in two
// places: the connection-wide manager that owns their canonical handle
// (so, for transactions, a handle can be joined from another attachment),
// and a local mirror registry here that Detach walks to release both sides
// in one pass without the client having to free each child first.
type Attachment struct {
	Handle   int32
	DBName   string
	DPB      wire.ParamBlock
	Identity *auth.Identity

	mu     sync.Mutex
	broken bool

	Transactions *Registry[Transaction]
	Statements   *Registry[Statement]
	Blobs        *Registry[Blob]
	Events       *Registry[EventRegistration]

	txManager    *TransactionManager
	stmtManager  *StatementManager
	blobManager  *BlobManager
	eventManager *EventManager
}

// AttachmentManager tracks every attachment live on one connection.
type AttachmentManager struct {
	registry     *Registry[Attachment]
	txManager    *TransactionManager
	stmtManager  *StatementManager
	blobManager  *BlobManager
	eventManager *EventManager
}

// NewAttachmentManager returns an empty manager wired to the
// connection-wide managers every attachment it creates shares: starting a
// transaction, statement, BLOB, or event registration against any
// attachment registers its canonical handle in these, so a transaction
// handle in particular can be joined from another attachment on the same
// connection (DTC join).
func NewAttachmentManager(txManager *TransactionManager) *AttachmentManager {
	return &AttachmentManager{
		registry:     NewRegistry[Attachment](),
		txManager:    txManager,
		stmtManager:  NewStatementManager(),
		blobManager:  NewBlobManager(),
		eventManager: NewEventManager(),
	}
}

// Create registers a new attachment for an attach/create request and
// returns its server-assigned handle.
func (m *AttachmentManager) Create(dbName string, dpb wire.ParamBlock, identity *auth.Identity) *Attachment {
	att := &Attachment{
		DBName:       dbName,
		DPB:          dpb,
		Identity:     identity,
		Transactions: NewRegistry[Transaction](),
		Statements:   NewRegistry[Statement](),
		Blobs:        NewRegistry[Blob](),
		Events:       NewRegistry[EventRegistration](),
		txManager:    m.txManager,
		stmtManager:  m.stmtManager,
		blobManager:  m.blobManager,
		eventManager: m.eventManager,
	}
	att.Handle = m.registry.Register(att)
	return att
}

// StatementManager returns the connection-wide statement manager shared by
// every attachment this AttachmentManager creates.
func (m *AttachmentManager) StatementManager() *StatementManager { return m.stmtManager }

// BlobManager returns the connection-wide BLOB manager shared by every
// attachment this AttachmentManager creates.
func (m *AttachmentManager) BlobManager() *BlobManager { return m.blobManager }

// EventManager returns the connection-wide event manager shared by every
// attachment this AttachmentManager creates.
func (m *AttachmentManager) EventManager() *EventManager { return m.eventManager }

// Lookup resolves a handle to its attachment, raising bad-db on a miss.
func (m *AttachmentManager) Lookup(handle int32) (*Attachment, error) {
	att, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadDB(handle)
	}
	return att, nil
}

// Ping validates that handle still names a live attachment. It performs no
// I/O of its own; the session layer issuing the op_ping packet is what
// actually exercises the wire.
func (m *AttachmentManager) Ping(handle int32) error {
	_, err := m.Lookup(handle)
	return err
}

// Detach releases handle and every transaction, statement, BLOB, and event
// registration still open underneath it. Calling Detach twice on the same
// handle is safe: the second call finds nothing in the registry and
// returns nil, matching L2 (second detach is a client-side no-op).
func (m *AttachmentManager) Detach(handle int32) error {
	att, ok := m.registry.Lookup(handle)
	if !ok {
		return nil
	}

	att.Statements.Range(func(h int32, _ *Statement) bool {
		att.Statements.Release(h)
		if att.stmtManager != nil {
			att.stmtManager.Release(h)
		}
		return true
	})
	att.Blobs.Range(func(h int32, _ *Blob) bool {
		att.Blobs.Release(h)
		if att.blobManager != nil {
			att.blobManager.Close(h)
		}
		return true
	})
	att.Events.Range(func(h int32, ev *EventRegistration) bool {
		ev.fireOnce(nil)
		att.Events.Release(h)
		if att.eventManager != nil {
			att.eventManager.release(h)
		}
		return true
	})
	att.Transactions.Range(func(h int32, _ *Transaction) bool {
		att.Transactions.Release(h)
		if att.txManager != nil {
			att.txManager.Release(h)
		}
		return true
	})

	m.registry.Release(handle)
	return nil
}

// MarkBroken flags att so that a future Detach from the close-on-broken
// path does not attempt to flush anything still buffered client-side; the
// release itself still runs to deallocate local state.
func (a *Attachment) MarkBroken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broken = true
}

// Broken reports whether the owning port has gone broken underneath this
// attachment.
func (a *Attachment) Broken() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.broken
}
