package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are shared across the transport, packet, auth, and object-manager
// layers so the same concept always logs under the same key.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyProtocol  = "protocol"  // Always "fbremote" today; reserved for future wire variants
	KeyProcedure = "procedure" // Packet operation name: op_attach, op_execute, op_fetch, etc.
	KeyStatus    = "status"    // gds status code of the operation's first status vector entry
	KeyStatusMsg = "status_msg"

	// ========================================================================
	// Port / Connection
	// ========================================================================
	KeyRemoteAddr  = "remote_addr"
	KeyProtoVer    = "protocol_version"
	KeyTransport   = "transport" // inet, inet4, inet6, xnet, wnet
	KeyConnID      = "connection_id"
	KeyCompression = "compression"
	KeyLazySend    = "lazy_send"

	// ========================================================================
	// Object handles
	// ========================================================================
	KeyAttachmentID = "attachment_id"
	KeyTransactID   = "transaction_id"
	KeyStatementID  = "statement_id"
	KeyBlobID       = "blob_id"
	KeyRequestID    = "request_id" // BLR request handle, distinct from KeyXID
	KeyEventID      = "event_id"
	KeyServiceID    = "service_id"
	KeyBatchID      = "batch_id"

	// ========================================================================
	// Wire framing
	// ========================================================================
	KeyXID        = "xid" // opaque op sequence marker used in log correlation
	KeyOpCode     = "op_code"
	KeyPacketLen  = "packet_len"
	KeyFragment   = "fragment"
	KeyDeferred   = "deferred"
	KeyQueueDepth = "queue_depth"

	// ========================================================================
	// Authentication
	// ========================================================================
	KeyUsername = "username"
	KeyAuthName = "auth_plugin" // Srp, Srp256, Legacy_Auth, Win_Sspi, Kerberos
	KeyAuthRound = "auth_round"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyBytesIn    = "bytes_in"
	KeyBytesOut   = "bytes_out"
	KeyRowCount   = "row_count"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Protocol returns a slog.Attr for the protocol name.
func Protocol(proto string) slog.Attr { return slog.String(KeyProtocol, proto) }

// Procedure returns a slog.Attr for the packet operation name.
func Procedure(name string) slog.Attr { return slog.String(KeyProcedure, name) }

// Status returns a slog.Attr for a gds status code.
func Status(code int32) slog.Attr { return slog.Int64(KeyStatus, int64(code)) }

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr { return slog.String(KeyStatusMsg, msg) }

// RemoteAddr returns a slog.Attr for the peer address.
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

// ProtocolVersion returns a slog.Attr for the negotiated protocol version.
func ProtocolVersion(v int) slog.Attr { return slog.Int(KeyProtoVer, v) }

// Transport returns a slog.Attr for the transport kind.
func Transport(kind string) slog.Attr { return slog.String(KeyTransport, kind) }

// ConnID returns a slog.Attr for a connection identifier.
func ConnID(id string) slog.Attr { return slog.String(KeyConnID, id) }

// Compression returns a slog.Attr for whether compression is active.
func Compression(on bool) slog.Attr { return slog.Bool(KeyCompression, on) }

// LazySend returns a slog.Attr for whether lazy/deferred send is active.
func LazySend(on bool) slog.Attr { return slog.Bool(KeyLazySend, on) }

// AttachmentID returns a slog.Attr for an attachment handle.
func AttachmentID(id uint32) slog.Attr { return slog.Uint64(KeyAttachmentID, uint64(id)) }

// TransactionID returns a slog.Attr for a transaction handle.
func TransactionID(id uint32) slog.Attr { return slog.Uint64(KeyTransactID, uint64(id)) }

// StatementID returns a slog.Attr for a statement handle.
func StatementID(id uint32) slog.Attr { return slog.Uint64(KeyStatementID, uint64(id)) }

// BlobID returns a slog.Attr for a blob handle, formatted as hex.
func BlobID(id uint64) slog.Attr { return slog.String(KeyBlobID, fmt.Sprintf("%016x", id)) }

// RequestID returns a slog.Attr for a BLR request handle.
func RequestID(id uint32) slog.Attr { return slog.Uint64(KeyRequestID, uint64(id)) }

// EventID returns a slog.Attr for an event registration id.
func EventID(id uint32) slog.Attr { return slog.Uint64(KeyEventID, uint64(id)) }

// ServiceID returns a slog.Attr for a service handle.
func ServiceID(id uint32) slog.Attr { return slog.Uint64(KeyServiceID, uint64(id)) }

// BatchID returns a slog.Attr for a batch handle.
func BatchID(id uint32) slog.Attr { return slog.Uint64(KeyBatchID, uint64(id)) }

// XID returns a slog.Attr for the op correlation marker, formatted as hex.
func XID(id uint64) slog.Attr { return slog.String(KeyXID, fmt.Sprintf("0x%x", id)) }

// OpCode returns a slog.Attr for a wire operation code.
func OpCode(op int32) slog.Attr { return slog.Int64(KeyOpCode, int64(op)) }

// PacketLen returns a slog.Attr for a packet length in bytes.
func PacketLen(n int) slog.Attr { return slog.Int(KeyPacketLen, n) }

// Fragment returns a slog.Attr marking a fragmented/partial packet.
func Fragment(isLast bool) slog.Attr { return slog.Bool(KeyFragment, isLast) }

// Deferred returns a slog.Attr marking a deferred (lazy) packet.
func Deferred(on bool) slog.Attr { return slog.Bool(KeyDeferred, on) }

// QueueDepth returns a slog.Attr for the deferred-packet queue depth.
func QueueDepth(n int) slog.Attr { return slog.Int(KeyQueueDepth, n) }

// Username returns a slog.Attr for the authenticating username.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// AuthPlugin returns a slog.Attr for the active auth plugin name.
func AuthPlugin(name string) slog.Attr { return slog.String(KeyAuthName, name) }

// AuthRound returns a slog.Attr for the current auth round number.
func AuthRound(n int) slog.Attr { return slog.Int(KeyAuthRound, n) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric gds error code.
func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }

// BytesIn returns a slog.Attr for inbound byte count.
func BytesIn(n int) slog.Attr { return slog.Int(KeyBytesIn, n) }

// BytesOut returns a slog.Attr for outbound byte count.
func BytesOut(n int) slog.Attr { return slog.Int(KeyBytesOut, n) }

// RowCount returns a slog.Attr for a fetched row count.
func RowCount(n int) slog.Attr { return slog.Int(KeyRowCount, n) }
