// Package server wires the Session State Machine, the Object Managers, and
// the Async/Event Channel together into one connection handler: the piece
// that a listener.Listener hands each accepted transport.Port to.
package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fbremote/fbremote/internal/asyncchan"
	"github.com/fbremote/fbremote/internal/auth"
	"github.com/fbremote/fbremote/internal/listener"
	"github.com/fbremote/fbremote/internal/logger"
	"github.com/fbremote/fbremote/internal/object"
	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/session"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/fbremote/fbremote/pkg/metrics"
	"github.com/google/uuid"
)

// protocolVersion13 is the first wire protocol version that carries the
// pluggable auth sub-protocol (cont_auth/accept_data) this handshake
// drives; accept names it only when the client's connect offered no
// version at all, and otherwise names the highest version offered.
const protocolVersion13 = 13

// Server holds the state shared by every connection it accepts: the
// aux-port rendezvous table every attachment's Async/Event Channel needs
// to match its callback connection, since that arrives as an entirely
// separate accepted port rather than as part of the attaching session, and
// an optional metrics recorder for per-operation latency.
type Server struct {
	aux     *auxRendezvous
	metrics metrics.Recorder
	plugins map[string]auth.ServerFactory
}

// New returns a Server ready to hand to a listener.Listener, offering the
// default SYSDBA/masterkey credential's Srp256/Srp/Legacy_Auth plugins.
// rec may be nil.
func New(rec metrics.Recorder) *Server {
	store, err := auth.NewCredentialStore()
	if err != nil {
		// Deriving the default account's SRP verifiers only fails if the
		// system RNG is unavailable, which leaves the process unable to do
		// much of anything else either; an empty plugin set degrades every
		// connect to the anonymous/legacy fallback path instead of panicking.
		logger.Error("server: default credential store unavailable", "error", err)
		return &Server{aux: newAuxRendezvous(), metrics: rec, plugins: map[string]auth.ServerFactory{}}
	}
	return NewWithPlugins(rec, store.DefaultServerPlugins())
}

// NewWithPlugins returns a Server offering exactly plugins for the auth
// handshake, for callers (cmd/fbremoted) that build the set from
// configuration instead of the default credential store.
func NewWithPlugins(rec metrics.Recorder, plugins map[string]auth.ServerFactory) *Server {
	return &Server{aux: newAuxRendezvous(), metrics: rec, plugins: plugins}
}

// NewConnection implements listener.ConnectionFactory.
func (s *Server) NewConnection(port *transport.Port) listener.ConnectionHandler {
	return &Connection{
		sess:    session.New(port, nil),
		objs:    object.NewConnection(),
		aux:     s.aux,
		metrics: s.metrics,
		plugins: s.plugins,
	}
}

// Connection drives one accepted port's request/response loop: receive a
// packet, dispatch it against the object managers, send the response.
// Serve returns once the session goes sticky-broken or the peer sends
// exit/disconnect. The very same handler also serves a callback port
// dialed back in with op_aux_connect: its first (and only) packet is
// handed to the aux rendezvous table instead of the ordinary dispatch
// loop, handing port ownership to the attachment's Async/Event Channel.
type Connection struct {
	sess    *session.Session
	objs    *object.Connection
	aux     *auxRendezvous
	metrics metrics.Recorder
	plugins map[string]auth.ServerFactory

	identity *auth.Identity

	ctx    context.Context
	cancel context.CancelFunc
}

// Serve implements listener.ConnectionHandler.
func (c *Connection) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = ctx, cancel
	defer cancel()
	defer c.teardown()

	identity, ok := c.handshake(ctx)
	if !ok {
		return
	}
	c.identity = identity

	for {
		p, err := c.sess.Receive(ctx)
		if err != nil {
			if protoerr.KindOf(err) != protoerr.KindNetwork {
				logger.Debug("server: receive failed", "error", err)
			}
			return
		}

		if p.Op == wire.OpAuxConnect {
			c.handleAuxConnect(p)
			return
		}

		start := time.Now()
		resp, ok := c.dispatch(p)
		if c.metrics != nil {
			c.metrics.RecordOperation(p.Op.String(), time.Since(start), errorCode(resp))
		}
		if !ok {
			return
		}
		if resp == nil {
			continue
		}
		if err := c.sess.SendPacket(resp); err != nil {
			logger.Debug("server: send failed", "error", err)
			return
		}
	}
}

// handshake runs the connect/accept negotiation that precedes every other
// request on a primary session: read op_connect, and if the client's
// packed auth block named no plugins at all (a pre-auth-plugin client, or
// one that only wants the anonymous/trusted-OS path), reply with a plain
// accept and no identity - the same fallback the real protocol grants a
// client connecting below protocol 13. Otherwise drive a ServerHandshake
// through as many cont_auth rounds as the negotiated plugin needs,
// switching plugins when the client's offered list still has a candidate
// left to try, and answering any crypt_key_callback side-channel request
// with an empty reply since this engine has no local crypto callback of
// its own to run. ok is false once the connection should close without
// entering the main dispatch loop.
func (c *Connection) handshake(ctx context.Context) (*auth.Identity, bool) {
	p, err := c.sess.Receive(ctx)
	if err != nil {
		if protoerr.KindOf(err) != protoerr.KindNetwork {
			logger.Debug("server: connect failed", "error", err)
		}
		return nil, false
	}
	if p.Op == wire.OpAuxConnect {
		c.handleAuxConnect(p)
		return nil, false
	}
	if p.Op != wire.OpConnect || p.Connect == nil {
		c.sendHandshakeFailure(protoerr.NewProtocolError("expected connect", errMalformed))
		return nil, false
	}

	version := negotiateVersion(p.Connect.Versions)

	block, err := auth.DecodeClientAuthBlock(p.Connect.UserID)
	if err != nil || len(block.PluginList) == 0 {
		if sendErr := c.sess.SendPacket(&wire.Packet{
			Op: wire.OpAccept,
			Accept: &wire.AcceptPacket{
				Version:      version,
				Architecture: p.Connect.Architecture,
				Type:         int32(p.Connect.Operation),
			},
		}); sendErr != nil {
			logger.Debug("server: accept send failed", "error", sendErr)
			return nil, false
		}
		return nil, true
	}

	hs, err := auth.NewServerHandshake(c.plugins, block.PluginList)
	if err != nil {
		c.sendHandshakeFailure(err)
		return nil, false
	}

	dataIn := block.Data
	for {
		step, switched, err := hs.Step(ctx, dataIn)
		if err != nil {
			c.sendHandshakeFailure(err)
			return nil, false
		}
		if step.Done {
			accept := &wire.AcceptPacket{
				Version:         version,
				Architecture:    p.Connect.Architecture,
				Type:            int32(p.Connect.Operation),
				PluginName:      hs.PluginName(),
				AuthData:        step.DataOut,
				Keys:            auth.EncodeCryptKeys(hs.Keys()),
				IsAuthenticated: true,
			}
			if err := c.sess.SendPacket(&wire.Packet{Op: wire.OpAcceptData, Accept: accept}); err != nil {
				logger.Debug("server: accept_data send failed", "error", err)
				return nil, false
			}
			return step.Identity, true
		}

		cont := &wire.AuthContPacket{Data: step.DataOut}
		if switched {
			cont.Name = hs.PluginName()
		}
		if err := c.sess.SendPacket(&wire.Packet{Op: wire.OpContAuth, AuthCont: cont}); err != nil {
			logger.Debug("server: cont_auth send failed", "error", err)
			return nil, false
		}

		next, err := c.sess.Receive(ctx)
		if err != nil {
			logger.Debug("server: cont_auth receive failed", "error", err)
			return nil, false
		}
		if next.Op == wire.OpCryptKeyCallback {
			reply := &wire.Packet{Op: wire.OpCryptKeyCallback, CryptKeyCallback: &wire.CryptKeyCallbackPacket{}}
			if err := c.sess.SendPacket(reply); err != nil {
				logger.Debug("server: crypt_key_callback reply failed", "error", err)
				return nil, false
			}
			next, err = c.sess.Receive(ctx)
			if err != nil {
				logger.Debug("server: post-callback receive failed", "error", err)
				return nil, false
			}
		}
		if next.AuthCont == nil {
			c.sendHandshakeFailure(protoerr.NewProtocolError("expected cont_auth", errMalformed))
			return nil, false
		}
		dataIn = next.AuthCont.Data
	}
}

// sendHandshakeFailure reports a handshake error the only way the
// protocol allows before a session has an object handle to attach status
// to: an op_response carrying the status vector, same as any other failed
// request.
func (c *Connection) sendHandshakeFailure(err error) {
	if sendErr := c.sess.SendPacket(errorResponse(err)); sendErr != nil {
		logger.Debug("server: handshake failure response failed", "error", sendErr)
	}
}

// negotiateVersion picks the highest protocol version the client offered,
// mirroring the real handshake's "pick the best mutually supported
// version" without a server-side version table to intersect against,
// since this engine has no version-gated wire behavior of its own. An
// empty offer (malformed connect) falls back to protocol 13, the version
// the plugin-based auth handshake that follows assumes.
func negotiateVersion(offered []wire.ProtocolVersion) int32 {
	if len(offered) == 0 {
		return protocolVersion13
	}
	best := offered[0].Version
	for _, v := range offered[1:] {
		if v.Version > best {
			best = v.Version
		}
	}
	return best
}

// handleAuxConnect matches an incoming callback connection to the token an
// earlier attach response handed out. An unresolved token (already
// claimed, expired, or never issued - e.g. a stale retry) is logged and
// the port is simply closed when Serve returns.
func (c *Connection) handleAuxConnect(p *wire.Packet) {
	if p.AuxConnect == nil {
		return
	}
	if !c.aux.Resolve(p.AuxConnect.Token, c.sess.Port()) {
		logger.Debug("server: aux_connect with unknown or expired token", "token", p.AuxConnect.Token)
	}
}

// startAsyncChannel waits in the background for the attachment's callback
// connection to present token, then drives its Async/Event Channel for the
// rest of this connection's lifetime. A client that never dials back (it
// has no events to register) simply leaves this goroutine blocked in
// Await until Serve's context is cancelled, at which point it exits.
func (c *Connection) startAsyncChannel(token string) {
	go func() {
		auxPort, err := c.aux.Await(c.ctx, token)
		if err != nil {
			return
		}
		c.sess.Port().Aux = auxPort

		ch := asyncchan.New(c.sess.Port(), auxPort, c.objs.Attachments.EventManager())
		if err := ch.Run(c.ctx); err != nil {
			logger.Debug("server: async channel ended", "error", err)
		}
	}()
}

func (c *Connection) handleQueEvents(p *wire.Packet) *wire.Packet {
	if p.Event == nil {
		return errorResponse(protoerr.NewProtocolError("malformed que_events packet", errMalformed))
	}
	att, err := c.objs.Attachments.Lookup(p.Event.AttachmentHandle)
	if err != nil {
		return errorResponse(err)
	}

	var reg *object.EventRegistration
	reg = c.objs.Attachments.EventManager().Register(att, p.Event.Names, func(counts []uint32) {
		c.deliverEvent(att.Handle, reg.Handle, counts)
	})
	return successResponse(reg.Handle)
}

func (c *Connection) handleCancelEvents(p *wire.Packet) *wire.Packet {
	if p.Event == nil {
		return errorResponse(protoerr.NewProtocolError("malformed cancel_events packet", errMalformed))
	}
	if err := c.objs.Attachments.EventManager().Cancel(p.Event.EventID); err != nil {
		return errorResponse(err)
	}
	return successResponse(0)
}

// deliverEvent pushes a server-initiated op_event packet over the
// attachment's aux port. A client that registered events but never
// completed the aux handshake simply never hears about them - there is no
// sync-port fallback for this op, matching spec.md's event channel being
// aux-port-only.
func (c *Connection) deliverEvent(attHandle, eventHandle int32, counts []uint32) {
	auxPort := c.sess.Port().Aux
	if auxPort == nil {
		return
	}
	enc := xdr.NewEncoder(auxPort)
	pkt := &wire.Packet{
		Op: wire.OpEvent,
		Event: &wire.EventPacket{
			AttachmentHandle: attHandle,
			EventID:          eventHandle,
			Counts:           counts,
		},
	}
	if err := wire.Encode(enc, pkt); err != nil {
		logger.Debug("server: event delivery failed", "error", err)
	}
}

// dispatch handles one request packet, returning the response to send (nil
// if none is owed) and false when the connection should close.
func (c *Connection) dispatch(p *wire.Packet) (*wire.Packet, bool) {
	switch p.Op {
	case wire.OpExit, wire.OpDisconnect:
		return nil, false

	case wire.OpPing:
		if err := c.objs.Attachments.Ping(p.ObjectHandle); err != nil {
			return errorResponse(err), true
		}
		return successResponse(0), true

	case wire.OpAttach, wire.OpCreate:
		return c.handleAttach(p), true

	case wire.OpDetach:
		if err := c.objs.Attachments.Detach(p.ObjectHandle); err != nil {
			return errorResponse(err), true
		}
		return successResponse(0), true

	case wire.OpTransaction:
		return c.handleStartTransaction(p), true

	case wire.OpCommit:
		return c.handleEndTransaction(p.TransactionHandle, false, false), true
	case wire.OpRollback:
		return c.handleEndTransaction(p.TransactionHandle, true, false), true
	case wire.OpCommitRetaining:
		return c.handleEndTransaction(p.TransactionHandle, false, true), true
	case wire.OpRollbackRetaining:
		return c.handleEndTransaction(p.TransactionHandle, true, true), true

	case wire.OpAllocateStatement:
		return c.handleAllocateStatement(p), true
	case wire.OpPrepareStatement:
		return c.handlePrepare(p), true
	case wire.OpExecute, wire.OpExecute2:
		return c.handleExecute(p), true
	case wire.OpFetch:
		return c.handleFetch(p), true
	case wire.OpFreeStatement:
		c.objs.Attachments.StatementManager().Release(p.ObjectHandle)
		return successResponse(0), true

	case wire.OpQueEvents:
		return c.handleQueEvents(p), true
	case wire.OpCancelEvents:
		return c.handleCancelEvents(p), true

	case wire.OpCreateBlob2, wire.OpOpenBlob2:
		return c.handleOpenBlob(p), true
	case wire.OpGetSegment:
		return c.handleGetSegment(p), true
	case wire.OpPutSegment:
		return c.handlePutSegment(p), true
	case wire.OpCloseBlob, wire.OpCancelBlob:
		c.objs.Attachments.BlobManager().Close(p.Blob.BlobHandle)
		return successResponse(p.Blob.BlobHandle), true
	case wire.OpSeekBlob:
		return c.handleSeekBlob(p), true

	case wire.OpBatchCreate:
		return c.handleBatchCreate(p), true
	case wire.OpBatchMsg:
		return c.handleBatchMsg(p), true
	case wire.OpBatchRegblob:
		return c.handleBatchRegblob(p), true
	case wire.OpBatchBlobStream:
		return c.handleBatchBlobStream(p), true
	case wire.OpBatchExec:
		return c.handleBatchExec(p), true
	case wire.OpBatchSetBpb:
		return c.handleBatchSetBpb(p), true
	case wire.OpBatchRls, wire.OpBatchCs:
		c.objs.Batches.Release(p.Batch.BatchHandle)
		return successResponse(p.Batch.BatchHandle), true

	case wire.OpInfoDatabase, wire.OpInfoTransaction, wire.OpInfoRequest, wire.OpInfoSql, wire.OpInfoBlob:
		return c.handleInfo(p), true

	case wire.OpServiceAttach:
		return c.handleServiceAttach(p), true
	case wire.OpServiceDetach:
		if err := c.objs.Services.Detach(p.Service.ServiceHandle); err != nil {
			return errorResponse(err), true
		}
		return successResponse(0), true
	case wire.OpServiceStart:
		return c.handleServiceStart(p), true
	case wire.OpServiceInfo:
		return c.handleServiceInfo(p), true

	default:
		return errorResponse(protoerr.NewVersionMismatchError(p.Op.String())), true
	}
}

func (c *Connection) handleAttach(p *wire.Packet) *wire.Packet {
	if p.Attach == nil {
		return errorResponse(protoerr.NewProtocolError("malformed attach packet", errMalformed))
	}
	att := c.objs.Attachments.Create(p.Attach.DBName, p.Attach.DPB, c.identity)

	token := uuid.NewString()
	c.startAsyncChannel(token)

	return &wire.Packet{
		Op:       wire.OpResponse,
		Response: &wire.ResponsePacket{ObjectHandle: att.Handle, Data: []byte(token)},
	}
}

func (c *Connection) handleStartTransaction(p *wire.Packet) *wire.Packet {
	if p.Transaction == nil {
		return errorResponse(protoerr.NewProtocolError("malformed transaction packet", errMalformed))
	}
	att, err := c.objs.Attachments.Lookup(p.Transaction.AttachmentHandle)
	if err != nil {
		return errorResponse(err)
	}
	tx := c.objs.Transactions.Start(att, p.Transaction.TPB)
	return successResponse(tx.Handle)
}

func (c *Connection) handleEndTransaction(handle int32, rollback, retaining bool) *wire.Packet {
	var err error
	if rollback {
		err = c.objs.Transactions.Rollback(handle, retaining)
	} else {
		err = c.objs.Transactions.Commit(handle, retaining)
	}
	if err != nil {
		return errorResponse(err)
	}
	return successResponse(handle)
}

func (c *Connection) handleAllocateStatement(p *wire.Packet) *wire.Packet {
	att, err := c.objs.Attachments.Lookup(p.ObjectHandle)
	if err != nil {
		return errorResponse(err)
	}
	st := c.objs.Attachments.StatementManager().Allocate(att)
	return successResponse(st.Handle)
}

func (c *Connection) handlePrepare(p *wire.Packet) *wire.Packet {
	if p.Prepare == nil {
		return errorResponse(protoerr.NewProtocolError("malformed prepare packet", errMalformed))
	}
	st, err := c.objs.Attachments.StatementManager().Lookup(p.Prepare.StatementHandle)
	if err != nil {
		return errorResponse(err)
	}
	st.Prepare(p.Prepare.TransactionHandle, p.Prepare.Dialect, p.Prepare.SQL)
	return successResponse(st.Handle)
}

func (c *Connection) handleExecute(p *wire.Packet) *wire.Packet {
	if p.Execute == nil {
		return errorResponse(protoerr.NewProtocolError("malformed execute packet", errMalformed))
	}
	st, err := c.objs.Attachments.StatementManager().Lookup(p.Execute.StatementHandle)
	if err != nil {
		return errorResponse(err)
	}
	// The query engine itself is an external collaborator (see SPEC_FULL.md
	// Non-goals); this wires the statement's row source through whatever the
	// caller installed on the attachment/transaction, defaulting to an empty
	// result set when none is configured.
	st.Execute(p.Execute.TransactionHandle, p.Execute.InBlrFormat, p.Execute.OutBlrFormat, nil)
	return successResponse(st.Handle)
}

func (c *Connection) handleFetch(p *wire.Packet) *wire.Packet {
	if p.Fetch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed fetch packet", errMalformed))
	}
	st, err := c.objs.Attachments.StatementManager().Lookup(p.Fetch.StatementHandle)
	if err != nil {
		return errorResponse(err)
	}
	count := int(p.Fetch.MessageCount)
	if count <= 0 {
		count = 1
	}
	sqlResp, err := st.Fetch(count)
	if err != nil {
		return errorResponse(err)
	}
	return &wire.Packet{Op: wire.OpSqlResponse, SQLResponse: sqlResp}
}

// serverVersion is the string this engine reports through
// info_database's isc_info_firebird_version cluster.
const serverVersion = "fbremote/1.0"

func (c *Connection) handleOpenBlob(p *wire.Packet) *wire.Packet {
	if p.Blob == nil {
		return errorResponse(protoerr.NewProtocolError("malformed blob packet", errMalformed))
	}
	att, err := c.objs.Attachments.Lookup(p.Blob.AttachmentHandle)
	if err != nil {
		return errorResponse(err)
	}
	blobs := c.objs.Attachments.BlobManager()
	var b *object.Blob
	if p.Op == wire.OpCreateBlob2 {
		b = blobs.Create(att, p.Blob.TransactionHandle, p.Blob.BPB)
	} else {
		b = blobs.Open(att, p.Blob.TransactionHandle, p.Blob.BlobID, p.Blob.BPB)
	}
	return &wire.Packet{
		Op:       wire.OpResponse,
		Response: &wire.ResponsePacket{ObjectHandle: b.Handle, BlobID: b.BlobID},
	}
}

// segstrEOF is isc_segstr_eof, the warning gds-code get_segment's response
// carries once a BLOB's read queue is fully drained - a warning rather
// than an error, since reaching end-of-blob is an expected outcome, not a
// failure.
const segstrEOF int32 = 335544367

func (c *Connection) handleGetSegment(p *wire.Packet) *wire.Packet {
	if p.Segment == nil {
		return errorResponse(protoerr.NewProtocolError("malformed get_segment packet", errMalformed))
	}
	b, err := c.objs.Attachments.BlobManager().Lookup(p.Segment.BlobHandle)
	if err != nil {
		return errorResponse(err)
	}
	data, ok := b.GetSegment()
	status := protoerr.NewStatusVector(0)
	if !ok {
		status.AddWarning(segstrEOF)
	}
	return &wire.Packet{
		Op:       wire.OpResponse,
		Response: &wire.ResponsePacket{ObjectHandle: p.Segment.BlobHandle, Data: data, Status: status},
	}
}

func (c *Connection) handlePutSegment(p *wire.Packet) *wire.Packet {
	if p.Segment == nil {
		return errorResponse(protoerr.NewProtocolError("malformed put_segment packet", errMalformed))
	}
	b, err := c.objs.Attachments.BlobManager().Lookup(p.Segment.BlobHandle)
	if err != nil {
		return errorResponse(err)
	}
	if _, err := b.PutSegment(p.Segment.Data); err != nil {
		return errorResponse(err)
	}
	return successResponse(p.Segment.BlobHandle)
}

func (c *Connection) handleSeekBlob(p *wire.Packet) *wire.Packet {
	if p.Blob == nil {
		return errorResponse(protoerr.NewProtocolError("malformed seek_blob packet", errMalformed))
	}
	b, err := c.objs.Attachments.BlobManager().Lookup(p.Blob.BlobHandle)
	if err != nil {
		return errorResponse(err)
	}
	pos := b.Seek(p.Blob.SeekMode, p.Blob.SeekOffset)
	return &wire.Packet{Op: wire.OpResponse, Response: &wire.ResponsePacket{ObjectHandle: pos}}
}

func (c *Connection) handleBatchCreate(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_create packet", errMalformed))
	}
	b := c.objs.Batches.Create(p.Batch.StatementHandle, p.Batch.TransactionHandle, p.Batch.BPB, p.Batch.Segmented)
	return successResponse(b.Handle)
}

func (c *Connection) handleBatchMsg(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_msg packet", errMalformed))
	}
	b, err := c.objs.Batches.Lookup(p.Batch.BatchHandle)
	if err != nil {
		return errorResponse(err)
	}
	b.AddRow(p.Batch.Data)
	return successResponse(b.Handle)
}

func (c *Connection) handleBatchRegblob(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_regblob packet", errMalformed))
	}
	b, err := c.objs.Batches.Lookup(p.Batch.BatchHandle)
	if err != nil {
		return errorResponse(err)
	}
	b.RegisterBlob(object.BlobStreamHeader{BlobID: p.Batch.BlobID, ParLength: uint32(len(p.Batch.BPB.Encode()))}, p.Batch.BPB.Encode())
	return successResponse(b.Handle)
}

func (c *Connection) handleBatchBlobStream(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_blob_stream packet", errMalformed))
	}
	b, err := c.objs.Batches.Lookup(p.Batch.BatchHandle)
	if err != nil {
		return errorResponse(err)
	}
	b.AddBlobSegment(p.Batch.Data)
	return successResponse(b.Handle)
}

func (c *Connection) handleBatchExec(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_exec packet", errMalformed))
	}
	b, err := c.objs.Batches.Lookup(p.Batch.BatchHandle)
	if err != nil {
		return errorResponse(err)
	}
	st, err := c.objs.Attachments.StatementManager().Lookup(b.StatementHandle)
	if err != nil {
		return errorResponse(err)
	}
	rows, _ := b.Flush()
	// The query engine that would actually execute each buffered row is an
	// external collaborator (see handleExecute); this drives the same
	// per-row Execute path the single-row op uses, once per buffered row.
	for range rows {
		st.Execute(p.Batch.TransactionHandle, nil, nil, nil)
	}
	return successResponse(b.Handle)
}

func (c *Connection) handleBatchSetBpb(p *wire.Packet) *wire.Packet {
	if p.Batch == nil {
		return errorResponse(protoerr.NewProtocolError("malformed batch_set_bpb packet", errMalformed))
	}
	b, err := c.objs.Batches.Lookup(p.Batch.BatchHandle)
	if err != nil {
		return errorResponse(err)
	}
	b.BPB = p.Batch.BPB
	return successResponse(b.Handle)
}

func (c *Connection) handleInfo(p *wire.Packet) *wire.Packet {
	if p.Info == nil {
		return errorResponse(protoerr.NewProtocolError("malformed info packet", errMalformed))
	}
	var lookupErr error
	switch p.Op {
	case wire.OpInfoDatabase:
		_, lookupErr = c.objs.Attachments.Lookup(p.Info.Handle)
	case wire.OpInfoTransaction:
		_, lookupErr = c.objs.Transactions.Lookup(p.Info.Handle)
	case wire.OpInfoSql, wire.OpInfoRequest:
		_, lookupErr = c.objs.Attachments.StatementManager().Lookup(p.Info.Handle)
	case wire.OpInfoBlob:
		_, lookupErr = c.objs.Attachments.BlobManager().Lookup(p.Info.Handle)
	}
	if lookupErr != nil {
		return errorResponse(lookupErr)
	}
	return &wire.Packet{
		Op:       wire.OpResponse,
		Response: &wire.ResponsePacket{ObjectHandle: p.Info.Handle, Data: wire.EncodeVersionInfo(serverVersion)},
	}
}

func (c *Connection) handleServiceAttach(p *wire.Packet) *wire.Packet {
	if p.Service == nil {
		return errorResponse(protoerr.NewProtocolError("malformed service_attach packet", errMalformed))
	}
	svc := c.objs.Services.Attach(p.Service.ServiceName, p.Service.SPB)
	return successResponse(svc.Handle)
}

func (c *Connection) handleServiceStart(p *wire.Packet) *wire.Packet {
	if p.Service == nil {
		return errorResponse(protoerr.NewProtocolError("malformed service_start packet", errMalformed))
	}
	svc, err := c.objs.Services.Lookup(p.Service.ServiceHandle)
	if err != nil {
		return errorResponse(err)
	}
	if err := svc.Start(p.Service.SendItems); err != nil {
		return errorResponse(err)
	}
	return successResponse(svc.Handle)
}

func (c *Connection) handleServiceInfo(p *wire.Packet) *wire.Packet {
	if p.Service == nil {
		return errorResponse(protoerr.NewProtocolError("malformed service_info packet", errMalformed))
	}
	svc, err := c.objs.Services.Lookup(p.Service.ServiceHandle)
	if err != nil {
		return errorResponse(err)
	}
	// The service's actual work (backup, stats, user management, ...) is an
	// external collaborator; this only reports the handle's lifecycle state.
	return &wire.Packet{Op: wire.OpResponse, Response: &wire.ResponsePacket{ObjectHandle: svc.Handle}}
}

// teardown runs when Serve returns, whether from a clean exit, a broken
// transport, or a panic-free early return: it tears down every event
// registration still open on this connection. Attachments, transactions,
// statements, blobs, batches and services are not released here.
func (c *Connection) teardown() {
	c.objs.Attachments.EventManager().TeardownAll()
}

var errMalformed = errors.New("packet missing its typed payload")

func successResponse(handle int32) *wire.Packet {
	return &wire.Packet{Op: wire.OpResponse, Response: &wire.ResponsePacket{ObjectHandle: handle}}
}

func errorResponse(err error) *wire.Packet {
	var pe *protoerr.ProtocolError
	var sv *protoerr.StatusVector
	if errors.As(err, &pe) {
		sv = protoerr.NewStatusVector(int32(pe.Kind()), pe.Error())
	} else {
		sv = protoerr.NewStatusVector(0, err.Error())
	}
	return &wire.Packet{Op: wire.OpResponse, Response: &wire.ResponsePacket{Status: sv}}
}

// errorCode extracts the primary gds-code from resp for the metrics label,
// or "" on a nil/success response.
func errorCode(resp *wire.Packet) string {
	if resp == nil || resp.Response == nil || resp.Response.Status == nil {
		return ""
	}
	for _, e := range resp.Response.Status.Entries {
		if e.Tag == protoerr.TagGdsCode && e.Code != 0 {
			return strconv.Itoa(int(e.Code))
		}
	}
	return ""
}
