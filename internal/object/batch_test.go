package object

import (
	"testing"

	"github.com/fbremote/fbremote/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchManager_CreateAndLookup(t *testing.T) {
	bm := NewBatchManager()
	b := bm.Create(1, 2, wire.ParamBlock{}, false)
	require.NotZero(t, b.Handle)

	got, err := bm.Lookup(b.Handle)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.StatementHandle)
}

func TestBatchManager_LookupUnknownIsBadReq(t *testing.T) {
	bm := NewBatchManager()
	_, err := bm.Lookup(9)
	assert.Error(t, err)
}

func TestBatch_AddRowAndFlush(t *testing.T) {
	bm := NewBatchManager()
	b := bm.Create(1, 2, wire.ParamBlock{}, false)

	b.AddRow([]byte("row1"))
	b.AddRow([]byte("row2"))

	rows, blobs := b.Flush()
	assert.Equal(t, [][]byte{[]byte("row1"), []byte("row2")}, rows)
	assert.Empty(t, blobs)

	rows2, _ := b.Flush()
	assert.Empty(t, rows2)
}

func TestBatch_RegisterBlobAndAddSegments(t *testing.T) {
	bm := NewBatchManager()
	b := bm.Create(1, 2, wire.ParamBlock{}, true)

	b.RegisterBlob(BlobStreamHeader{BlobID: 0x1234}, []byte("bpb"))
	b.AddBlobSegment([]byte("segment-data"))

	_, blobStream := b.Flush()
	header, par, ok := DecodeBlobStreamHeader(blobStream)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1234), header.BlobID)
	assert.Equal(t, []byte("bpb"), par)
}

func TestBlobStreamHeader_RoundTrip(t *testing.T) {
	raw := EncodeBlobStreamHeader(BlobStreamHeader{BlobID: 99, ParLength: 3}, []byte("abc"))
	h, par, ok := DecodeBlobStreamHeader(raw)
	require.True(t, ok)
	assert.Equal(t, uint64(99), h.BlobID)
	assert.Equal(t, []byte("abc"), par)
}

func TestBlobStreamHeader_TruncatedRejected(t *testing.T) {
	_, _, ok := DecodeBlobStreamHeader([]byte{1, 2, 3})
	assert.False(t, ok)
}
