package object

import (
	"encoding/binary"
	"sync"

	"github.com/fbremote/fbremote/internal/wire"
)

// BlobStreamHeader is the fixed-layout header prefixing each BLOB's data in
// a batch's blob stream: the blob id, the parameter block's length encoded
// twice (the protocol's own defensive duplication against a truncated
// read), and the parameter bytes themselves.
type BlobStreamHeader struct {
	BlobID    uint64
	ParLength uint32
}

// EncodeBlobStreamHeader packs header followed by par, the duplicated
// length, and par's bytes, matching {blob-id, par-length, par-length(again),
// par-bytes}.
func EncodeBlobStreamHeader(h BlobStreamHeader, par []byte) []byte {
	buf := make([]byte, 8+4+4+len(par))
	binary.BigEndian.PutUint64(buf[0:8], h.BlobID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(par)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(par)))
	copy(buf[16:], par)
	return buf
}

// DecodeBlobStreamHeader reverses EncodeBlobStreamHeader, rejecting a
// header whose two length fields disagree - the duplication exists
// precisely so a corrupt stream is caught here rather than misreading par.
func DecodeBlobStreamHeader(raw []byte) (h BlobStreamHeader, par []byte, ok bool) {
	if len(raw) < 16 {
		return BlobStreamHeader{}, nil, false
	}
	h.BlobID = binary.BigEndian.Uint64(raw[0:8])
	length := binary.BigEndian.Uint32(raw[8:12])
	length2 := binary.BigEndian.Uint32(raw[12:16])
	if length != length2 {
		return BlobStreamHeader{}, nil, false
	}
	h.ParLength = length
	if uint32(len(raw)-16) < length {
		return BlobStreamHeader{}, nil, false
	}
	return h, raw[16 : 16+length], true
}

// RowOutcome is one row's success/failure state in a batch completion
// message.
type RowOutcome struct {
	Row     int
	Success bool
	Message string
}

// Batch is one JDBC-style bulk-insert batch: a row-stream buffer and a
// separate BLOB-stream buffer, flushed together on Execute.
type Batch struct {
	Handle            int32
	StatementHandle   int32
	TransactionHandle int32
	BPB               wire.ParamBlock
	Segmented         bool

	mu         sync.Mutex
	rowStream  [][]byte
	blobStream []byte
}

// BatchManager tracks every open batch live on a connection.
type BatchManager struct {
	registry *Registry[Batch]
}

// NewBatchManager returns an empty manager.
func NewBatchManager() *BatchManager {
	return &BatchManager{registry: NewRegistry[Batch]()}
}

// Create opens a batch bound to a prepared statement.
func (m *BatchManager) Create(statementHandle, transactionHandle int32, bpb wire.ParamBlock, segmented bool) *Batch {
	b := &Batch{StatementHandle: statementHandle, TransactionHandle: transactionHandle, BPB: bpb, Segmented: segmented}
	b.Handle = m.registry.Register(b)
	return b
}

// Lookup resolves a handle to its batch, raising bad-req on a miss - the
// batch op set shares the request-handle error kind with other
// message-oriented operations.
func (m *BatchManager) Lookup(handle int32) (*Batch, error) {
	b, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadReq(handle)
	}
	return b, nil
}

// AddRow appends one encoded row message to the batch's row stream.
func (b *Batch) AddRow(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rowStream = append(b.rowStream, msg)
}

// AddBlobSegment appends raw bytes to the batch's BLOB stream. If the
// current BPB says segmented, the caller is responsible for
// length-prefixing each segment before calling this; Batch itself just
// concatenates.
func (b *Batch) AddBlobSegment(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobStream = append(b.blobStream, data...)
}

// RegisterBlob appends a blob-stream header ahead of that BLOB's segments,
// matching batch_regblob.
func (b *Batch) RegisterBlob(header BlobStreamHeader, par []byte) {
	b.AddBlobSegment(EncodeBlobStreamHeader(header, par))
}

// Flush drains and returns both streams for execution, clearing the
// batch's buffers so a second Execute on the same handle starts empty.
func (b *Batch) Flush() (rows [][]byte, blobStream []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows, blobStream = b.rowStream, b.blobStream
	b.rowStream, b.blobStream = nil, nil
	return rows, blobStream
}

// Release drops handle from the manager (batch_cs / batch close).
func (m *BatchManager) Release(handle int32) {
	m.registry.Release(handle)
}
