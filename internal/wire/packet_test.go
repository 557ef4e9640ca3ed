package wire

import (
	"bytes"
	"testing"

	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p *Packet) *Packet {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(xdr.NewEncoder(&buf), p))
	got, err := Decode(xdr.NewDecoder(&buf))
	require.NoError(t, err)
	return got
}

func TestPacket_ConnectRoundTrip(t *testing.T) {
	p := &Packet{
		Op: OpConnect,
		Connect: &ConnectPacket{
			Operation:    OpAttach,
			CnctVersion:  1,
			Architecture: 1,
			Versions: []ProtocolVersion{
				{Version: 13, Architecture: 1, MinType: 2, MaxType: 3, Weight: 5},
			},
			UserID: []byte("client-auth-block"),
		},
	}
	got := roundTrip(t, p)
	assert.Equal(t, OpConnect, got.Op)
	assert.Equal(t, p.Connect, got.Connect)
}

func TestPacket_AttachRoundTrip(t *testing.T) {
	dpb := ParamBlock{Version: 1}.WithString(0x1c, "SYSDBA")
	p := &Packet{Op: OpAttach, Attach: &AttachPacket{DBName: "employee.fdb", DPB: dpb}}
	got := roundTrip(t, p)
	assert.Equal(t, "employee.fdb", got.Attach.DBName)
	assert.Equal(t, "SYSDBA", got.Attach.DPB.String(0x1c))
}

func TestPacket_DetachRoundTrip(t *testing.T) {
	p := &Packet{Op: OpDetach, ObjectHandle: 42}
	got := roundTrip(t, p)
	assert.Equal(t, int32(42), got.ObjectHandle)
}

func TestPacket_ExecuteFetchRoundTrip(t *testing.T) {
	p := &Packet{
		Op: OpExecute,
		Execute: &ExecutePacket{
			StatementHandle:   7,
			TransactionHandle: 3,
			InMessage:         []byte{1, 2, 3},
			InMessageCount:    1,
		},
	}
	got := roundTrip(t, p)
	assert.Equal(t, p.Execute, got.Execute)

	fp := &Packet{Op: OpFetch, Fetch: &FetchPacket{StatementHandle: 7, MessageCount: 10}}
	gotFetch := roundTrip(t, fp)
	assert.Equal(t, fp.Fetch, gotFetch.Fetch)
}

func TestPacket_SQLResponseRoundTrip(t *testing.T) {
	p := &Packet{Op: OpSqlResponse, SQLResponse: &SQLResponsePacket{
		Messages: [][]byte{{1, 2}, {3, 4, 5}},
		EOF:      true,
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.SQLResponse, got.SQLResponse)
}

func TestPacket_ResponseWithStatusVector(t *testing.T) {
	sv := protoerr.NewStatusVector(335544569, "SYSDBA")
	p := &Packet{Op: OpResponse, Response: &ResponsePacket{
		ObjectHandle: 1,
		Data:         []byte("payload"),
		Status:       sv,
	}}
	got := roundTrip(t, p)
	assert.Equal(t, sv.Entries, got.Response.Status.Entries)
	assert.True(t, got.Response.Status.HasError())
}

func TestPacket_ResponseDefaultsToSuccessVector(t *testing.T) {
	p := &Packet{Op: OpResponse, Response: &ResponsePacket{}}
	got := roundTrip(t, p)
	require.NotNil(t, got.Response.Status)
	assert.False(t, got.Response.Status.HasError())
}

func TestPacket_BlobAndSegmentRoundTrip(t *testing.T) {
	bp := &Packet{Op: OpCreateBlob2, Blob: &BlobPacket{
		AttachmentHandle:  1,
		TransactionHandle: 2,
	}}
	got := roundTrip(t, bp)
	assert.Equal(t, int32(1), got.Blob.AttachmentHandle)

	sp := &Packet{Op: OpPutSegment, Segment: &SegmentPacket{
		BlobHandle:   9,
		BufferLength: 3,
		Data:         []byte{1, 2, 3},
	}}
	gotSeg := roundTrip(t, sp)
	assert.Equal(t, sp.Segment, gotSeg.Segment)
}

func TestPacket_EventRoundTrip(t *testing.T) {
	p := &Packet{Op: OpQueEvents, Event: &EventPacket{
		AttachmentHandle: 1,
		EventID:          4,
		Names:            []string{"new_order", "cancel_order"},
		Counts:           []uint32{1, 1},
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Event, got.Event)
}

func TestPacket_ServiceRoundTrip(t *testing.T) {
	spb := ParamBlock{Version: 2}.WithString(0x1c, "SYSDBA")
	p := &Packet{Op: OpServiceAttach, Service: &ServicePacket{
		ServiceName: "service_mgr",
		SPB:         spb,
	}}
	got := roundTrip(t, p)
	assert.Equal(t, "service_mgr", got.Service.ServiceName)
	assert.Equal(t, "SYSDBA", got.Service.SPB.String(0x1c))
}

func TestPacket_CancelRoundTrip(t *testing.T) {
	p := &Packet{Op: OpCancel, Cancel: &CancelPacket{Kind: CancelRaise}}
	got := roundTrip(t, p)
	assert.Equal(t, CancelRaise, got.Cancel.Kind)
}

func TestPacket_DummyPingHaveNoPayload(t *testing.T) {
	got := roundTrip(t, &Packet{Op: OpDummy})
	assert.Equal(t, OpDummy, got.Op)

	got = roundTrip(t, &Packet{Op: OpPing})
	assert.Equal(t, OpPing, got.Op)
}

func TestPacket_UnknownOpRejected(t *testing.T) {
	p := &Packet{Op: Op(0xFFFF)}
	var buf bytes.Buffer
	err := Encode(xdr.NewEncoder(&buf), p)
	assert.Error(t, err)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "attach", OpAttach.String())
	assert.Equal(t, "op_unknown", Op(0xFFFF).String())
}

func TestPacket_SeekBlobRoundTrip(t *testing.T) {
	p := &Packet{Op: OpSeekBlob, Blob: &BlobPacket{BlobHandle: 5, SeekMode: 1, SeekOffset: -3}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Blob, got.Blob)
}

func TestPacket_AuthContRoundTrip(t *testing.T) {
	p := &Packet{Op: OpContAuth, AuthCont: &AuthContPacket{
		Data:       []byte{1, 2, 3},
		Name:       "Srp256",
		PluginList: "Srp256,Srp,Legacy_Auth",
		Keys:       []byte{4, 5},
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.AuthCont, got.AuthCont)

	trusted := &Packet{Op: OpTrustedAuth, AuthCont: &AuthContPacket{Data: []byte{9}}}
	gotTrusted := roundTrip(t, trusted)
	assert.Equal(t, trusted.AuthCont, gotTrusted.AuthCont)
}

func TestPacket_CryptKeyCallbackRoundTrip(t *testing.T) {
	p := &Packet{Op: OpCryptKeyCallback, CryptKeyCallback: &CryptKeyCallbackPacket{
		Data:        []byte{7, 8, 9},
		ReplyLength: 64,
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.CryptKeyCallback, got.CryptKeyCallback)
}

func TestPacket_BatchRoundTrip(t *testing.T) {
	bpb := ParamBlock{Version: 1}.WithString(0x1c, "tag")
	p := &Packet{Op: OpBatchCreate, Batch: &BatchPacket{
		BatchHandle:       3,
		StatementHandle:   7,
		TransactionHandle: 2,
		BPB:               bpb,
		Segmented:         true,
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Batch.BatchHandle, got.Batch.BatchHandle)
	assert.Equal(t, p.Batch.StatementHandle, got.Batch.StatementHandle)
	assert.Equal(t, p.Batch.Segmented, got.Batch.Segmented)
	assert.Equal(t, "tag", got.Batch.BPB.String(0x1c))

	msg := &Packet{Op: OpBatchMsg, Batch: &BatchPacket{BatchHandle: 3, Data: []byte{1, 2, 3}}}
	gotMsg := roundTrip(t, msg)
	assert.Equal(t, msg.Batch.Data, gotMsg.Batch.Data)

	regblob := &Packet{Op: OpBatchRegblob, Batch: &BatchPacket{BatchHandle: 3, BlobID: 0xdeadbeef}}
	gotRegblob := roundTrip(t, regblob)
	assert.Equal(t, regblob.Batch.BlobID, gotRegblob.Batch.BlobID)

	exec := &Packet{Op: OpBatchExec, Batch: &BatchPacket{BatchHandle: 3, TransactionHandle: 2}}
	gotExec := roundTrip(t, exec)
	assert.Equal(t, int32(3), gotExec.Batch.BatchHandle)
	assert.Equal(t, int32(2), gotExec.Batch.TransactionHandle)

	rls := &Packet{Op: OpBatchRls, Batch: &BatchPacket{BatchHandle: 3}}
	gotRls := roundTrip(t, rls)
	assert.Equal(t, int32(3), gotRls.Batch.BatchHandle)
}
