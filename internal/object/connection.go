package object

// Connection bundles the object managers that belong to a single Session:
// one transaction table shared across every attachment (so a transaction
// handle is routable across attachments within the same connection), and
// one attachment, service, and batch manager. Statement, BLOB, and event
// handles are similarly connection-wide (owned by AttachmentManager) but
// conceptually scoped to the attachment that created them; each
// Attachment keeps its own mirror registry so Detach can walk and release
// exactly its children.
type Connection struct {
	Transactions *TransactionManager
	Attachments  *AttachmentManager
	Services     *ServiceManager
	Batches      *BatchManager
}

// NewConnection wires up a fresh set of managers for one accepted Session.
func NewConnection() *Connection {
	txm := NewTransactionManager()
	return &Connection{
		Transactions: txm,
		Attachments:  NewAttachmentManager(txm),
		Services:     NewServiceManager(),
		Batches:      NewBatchManager(),
	}
}
