// Package wire implements the Packet Model: the tagged union of protocol
// operations exchanged over a Port, and the encode/decode dispatch table
// that sits on top of the XDR codec.
package wire

// Op identifies a packet's operation code. Values match the wire protocol's
// numeric opcodes so packet captures and the Go model stay in lock-step.
type Op uint32

const (
	OpConnect Op = 1
	OpExit    Op = 2
	OpAccept  Op = 3

	OpReject  Op = 4
	OpProtocol Op = 5
	OpDisconnect Op = 6
	OpCredit  Op = 7
	OpContinuation Op = 8
	OpResponse Op = 9

	// Database attachment lifecycle.
	OpAttach        Op = 19
	OpCreate        Op = 20
	OpDetach        Op = 21
	OpDropDatabase  Op = 22

	// Transaction lifecycle.
	OpTransaction      Op = 23
	OpCommit           Op = 24
	OpRollback         Op = 25
	OpReconnect        Op = 26
	OpCommitRetaining  Op = 60
	OpRollbackRetaining Op = 86
	OpPrepare2         Op = 79

	// Blob operations.
	OpCreateBlob  Op = 27
	OpOpenBlob    Op = 28
	OpGetSegment  Op = 29
	OpPutSegment  Op = 30
	OpCancelBlob  Op = 31
	OpCloseBlob   Op = 32
	OpCreateBlob2 Op = 90
	OpOpenBlob2   Op = 91
	OpSeekBlob    Op = 92
	OpBatchSegments Op = 93
	OpInfoBlob    Op = 94

	// Request/message (legacy prepared-statement) operations.
	OpAllocateStatement Op = 62
	OpExecute           Op = 63
	OpExec_immediate    Op = 64
	OpFetch             Op = 65
	OpFetchResponse     Op = 66
	OpFreeStatement     Op = 67
	OpPrepareStatement  Op = 68
	OpSetCursor         Op = 69
	OpInfoSql           Op = 70
	OpDummy             Op = 71
	OpResponsePiggyback Op = 72
	OpExecute2          Op = 76
	OpSqlResponse       Op = 78
	OpExecImmediate2    Op = 84

	OpCompile  Op = 44
	OpStart    Op = 38
	OpStartAndSend Op = 39
	OpStartAndReceive Op = 40
	OpStartSendAndReceive Op = 41
	OpSend     Op = 42
	OpReceive  Op = 43
	OpRelease  Op = 100

	// Database/transaction/request info.
	OpInfoDatabase     Op = 33
	OpInfoTransaction  Op = 45
	OpInfoRequest      Op = 50
	OpGetSlice         Op = 73
	OpPutSlice         Op = 74
	OpTransact         Op = 97

	// DDL / catalog.
	OpDdl Op = 35

	// Event channel.
	OpQueEvents   Op = 48
	OpCancelEvents Op = 49
	OpEvent       Op = 52
	OpConnectRequest Op = 53
	OpAuxConnect  Op = 53

	// Service manager.
	OpServiceAttach Op = 55
	OpServiceDetach Op = 56
	OpServiceInfo   Op = 57
	OpServiceStart  Op = 58

	// Batch API.
	OpBatchCreate   Op = 101
	OpBatchMsg      Op = 102
	OpBatchExec     Op = 103
	OpBatchRls      Op = 104
	OpBatchCs       Op = 105
	OpBatchRegblob  Op = 106
	OpBatchBlobStream Op = 107
	OpBatchSetBpb   Op = 108

	// Auth.
	OpContAuth     Op = 111
	OpCondAccept   Op = 112
	OpAcceptData   Op = 113
	OpTrustedAuth  Op = 114
	OpCryptKeyCallback Op = 117

	// Misc / lifecycle.
	OpPing    Op = 118
	OpCancel  Op = 119
	OpPartial Op = 10

	// CancelKind for OpCancel's mode argument.
)

// CancelKind is the mode argument carried by OpCancel: abort the connection
// outright, or just raise an interrupt in the currently-running request.
type CancelKind int32

const (
	CancelDisable CancelKind = 1
	CancelEnable  CancelKind = 2
	CancelRaise   CancelKind = 3
	CancelAbort   CancelKind = 4
)

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op_unknown"
}

var opNames = map[Op]string{
	OpConnect: "connect", OpExit: "exit", OpAccept: "accept",
	OpReject: "reject", OpDisconnect: "disconnect", OpResponse: "response",
	OpAttach: "attach", OpCreate: "create", OpDetach: "detach", OpDropDatabase: "drop_database",
	OpTransaction: "transaction", OpCommit: "commit", OpRollback: "rollback",
	OpReconnect: "reconnect", OpCommitRetaining: "commit_retaining", OpRollbackRetaining: "rollback_retaining",
	OpPrepare2: "prepare2",
	OpCreateBlob: "create_blob", OpOpenBlob: "open_blob", OpGetSegment: "get_segment",
	OpPutSegment: "put_segment", OpCancelBlob: "cancel_blob", OpCloseBlob: "close_blob",
	OpCreateBlob2: "create_blob2", OpOpenBlob2: "open_blob2", OpSeekBlob: "seek_blob",
	OpBatchSegments: "batch_segments", OpInfoBlob: "info_blob",
	OpAllocateStatement: "allocate_statement", OpExecute: "execute", OpExec_immediate: "exec_immediate",
	OpFetch: "fetch", OpFetchResponse: "fetch_response", OpFreeStatement: "free_statement",
	OpPrepareStatement: "prepare_statement", OpSetCursor: "set_cursor", OpInfoSql: "info_sql",
	OpDummy: "dummy", OpResponsePiggyback: "response_piggyback", OpExecute2: "execute2",
	OpSqlResponse: "sql_response", OpExecImmediate2: "exec_immediate2",
	OpStart: "start", OpStartAndSend: "start_and_send", OpStartAndReceive: "start_and_receive",
	OpStartSendAndReceive: "start_send_and_receive", OpSend: "send", OpReceive: "receive",
	OpRelease: "release",
	OpInfoDatabase: "info_database", OpInfoTransaction: "info_transaction", OpInfoRequest: "info_request",
	OpGetSlice: "get_slice", OpPutSlice: "put_slice", OpTransact: "transact",
	OpDdl: "ddl",
	OpQueEvents: "que_events", OpCancelEvents: "cancel_events", OpEvent: "event",
	OpServiceAttach: "service_attach", OpServiceDetach: "service_detach",
	OpServiceInfo: "service_info", OpServiceStart: "service_start",
	OpBatchCreate: "batch_create", OpBatchMsg: "batch_msg", OpBatchExec: "batch_exec",
	OpBatchRls: "batch_rls", OpBatchCs: "batch_cs", OpBatchRegblob: "batch_regblob",
	OpBatchBlobStream: "batch_blob_stream", OpBatchSetBpb: "batch_set_bpb",
	OpContAuth: "cont_auth", OpCondAccept: "cond_accept", OpAcceptData: "accept_data",
	OpTrustedAuth: "trusted_auth", OpCryptKeyCallback: "crypt_key_callback",
	OpPing: "ping", OpPartial: "partial", OpAuxConnect: "aux_connect", OpCancel: "cancel",
}
