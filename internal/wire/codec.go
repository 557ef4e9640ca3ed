package wire

import (
	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/fbremote/fbremote/internal/xdr"
)

func encodeConnect(enc *xdr.Codec, c *ConnectPacket) error {
	if err := enc.PutUint32(uint32(c.Operation)); err != nil {
		return err
	}
	if err := enc.PutInt32(c.CnctVersion); err != nil {
		return err
	}
	if err := enc.PutInt32(c.Architecture); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(len(c.Versions))); err != nil {
		return err
	}
	for _, v := range c.Versions {
		if err := enc.PutInt32(v.Version); err != nil {
			return err
		}
		if err := enc.PutInt32(v.Architecture); err != nil {
			return err
		}
		if err := enc.PutInt32(v.MinType); err != nil {
			return err
		}
		if err := enc.PutInt32(v.MaxType); err != nil {
			return err
		}
		if err := enc.PutInt32(v.Weight); err != nil {
			return err
		}
	}
	return enc.PutOpaque(c.UserID, true)
}

func decodeConnect(dec *xdr.Codec) (*ConnectPacket, error) {
	c := &ConnectPacket{}
	var err error
	var op uint32
	if op, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	c.Operation = Op(op)
	if c.CnctVersion, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if c.Architecture, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	count, err := dec.GetUint32()
	if err != nil {
		return nil, err
	}
	c.Versions = make([]ProtocolVersion, count)
	for i := range c.Versions {
		v := &c.Versions[i]
		if v.Version, err = dec.GetInt32(); err != nil {
			return nil, err
		}
		if v.Architecture, err = dec.GetInt32(); err != nil {
			return nil, err
		}
		if v.MinType, err = dec.GetInt32(); err != nil {
			return nil, err
		}
		if v.MaxType, err = dec.GetInt32(); err != nil {
			return nil, err
		}
		if v.Weight, err = dec.GetInt32(); err != nil {
			return nil, err
		}
	}
	if c.UserID, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeAccept(enc *xdr.Codec, a *AcceptPacket) error {
	if err := enc.PutInt32(a.Version); err != nil {
		return err
	}
	if err := enc.PutInt32(a.Architecture); err != nil {
		return err
	}
	if err := enc.PutInt32(a.Type); err != nil {
		return err
	}
	if err := enc.PutString(a.PluginName, true); err != nil {
		return err
	}
	if err := enc.PutString(a.PluginList, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(a.AuthData, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(a.Keys, true); err != nil {
		return err
	}
	return enc.PutBool(a.IsAuthenticated)
}

func decodeAccept(dec *xdr.Codec) (*AcceptPacket, error) {
	a := &AcceptPacket{}
	var err error
	if a.Version, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if a.Architecture, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if a.Type, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if a.PluginName, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	if a.PluginList, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	if a.AuthData, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if a.Keys, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if a.IsAuthenticated, err = dec.GetBool(); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeResponse(enc *xdr.Codec, r *ResponsePacket) error {
	if err := enc.PutUint32(uint32(r.ObjectHandle)); err != nil {
		return err
	}
	if err := enc.PutUint64(r.BlobID); err != nil {
		return err
	}
	if err := enc.PutOpaque(r.Data, true); err != nil {
		return err
	}
	status := r.Status
	if status == nil {
		status = protoerr.NewStatusVector(0)
	}
	return xdr.PutStatusVector(enc, status)
}

func decodeResponse(dec *xdr.Codec) (*ResponsePacket, error) {
	r := &ResponsePacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	r.ObjectHandle = int32(h)
	if r.BlobID, err = dec.GetUint64(); err != nil {
		return nil, err
	}
	if r.Data, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	status, err := xdr.GetStatusVector(dec)
	if err != nil {
		return nil, err
	}
	if status.HasError() || status.HasWarning() {
		r.Status = status
	}
	return r, nil
}

func encodeAttach(enc *xdr.Codec, a *AttachPacket) error {
	if err := enc.PutString(a.DBName, true); err != nil {
		return err
	}
	return enc.PutOpaque(a.DPB.Encode(), true)
}

func decodeAttach(dec *xdr.Codec) (*AttachPacket, error) {
	a := &AttachPacket{}
	var err error
	if a.DBName, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	raw, err := dec.GetOpaque(true, 0)
	if err != nil {
		return nil, err
	}
	a.DPB = ParseParamBlock(raw)
	return a, nil
}

func encodeTransaction(enc *xdr.Codec, t *TransactionPacket) error {
	if err := enc.PutUint32(uint32(t.AttachmentHandle)); err != nil {
		return err
	}
	return enc.PutOpaque(t.TPB.Encode(), true)
}

func decodeTransaction(dec *xdr.Codec) (*TransactionPacket, error) {
	t := &TransactionPacket{}
	h, err := dec.GetUint32()
	if err != nil {
		return nil, err
	}
	t.AttachmentHandle = int32(h)
	raw, err := dec.GetOpaque(true, 0)
	if err != nil {
		return nil, err
	}
	t.TPB = ParseParamBlock(raw)
	return t, nil
}

func encodePrepare(enc *xdr.Codec, p *PreparePacket) error {
	if err := enc.PutUint32(uint32(p.TransactionHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(p.StatementHandle)); err != nil {
		return err
	}
	if err := enc.PutInt32(p.Dialect); err != nil {
		return err
	}
	if err := enc.PutString(p.SQL, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(p.ItemsRequested, true); err != nil {
		return err
	}
	return enc.PutInt32(p.BufferLength)
}

func decodePrepare(dec *xdr.Codec) (*PreparePacket, error) {
	p := &PreparePacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	p.TransactionHandle = int32(h)
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	p.StatementHandle = int32(h)
	if p.Dialect, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if p.SQL, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	if p.ItemsRequested, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if p.BufferLength, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeExecute(enc *xdr.Codec, e *ExecutePacket) error {
	if err := enc.PutUint32(uint32(e.StatementHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(e.TransactionHandle)); err != nil {
		return err
	}
	if err := enc.PutOpaque(e.InBlrFormat, true); err != nil {
		return err
	}
	if err := enc.PutInt32(e.InMessageCount); err != nil {
		return err
	}
	if err := enc.PutOpaque(e.InMessage, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(e.OutBlrFormat, true); err != nil {
		return err
	}
	return enc.PutInt32(e.OutMessageCount)
}

func decodeExecute(dec *xdr.Codec) (*ExecutePacket, error) {
	e := &ExecutePacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	e.StatementHandle = int32(h)
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	e.TransactionHandle = int32(h)
	if e.InBlrFormat, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if e.InMessageCount, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if e.InMessage, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if e.OutBlrFormat, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if e.OutMessageCount, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return e, nil
}

func encodeFetch(enc *xdr.Codec, f *FetchPacket) error {
	if err := enc.PutUint32(uint32(f.StatementHandle)); err != nil {
		return err
	}
	if err := enc.PutOpaque(f.BlrFormat, true); err != nil {
		return err
	}
	return enc.PutInt32(f.MessageCount)
}

func decodeFetch(dec *xdr.Codec) (*FetchPacket, error) {
	f := &FetchPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	f.StatementHandle = int32(h)
	if f.BlrFormat, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if f.MessageCount, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return f, nil
}

func encodeSQLResponse(enc *xdr.Codec, s *SQLResponsePacket) error {
	if err := enc.PutUint32(uint32(len(s.Messages))); err != nil {
		return err
	}
	for _, m := range s.Messages {
		if err := enc.PutOpaque(m, true); err != nil {
			return err
		}
	}
	return enc.PutBool(s.EOF)
}

func decodeSQLResponse(dec *xdr.Codec) (*SQLResponsePacket, error) {
	s := &SQLResponsePacket{}
	count, err := dec.GetUint32()
	if err != nil {
		return nil, err
	}
	s.Messages = make([][]byte, count)
	for i := range s.Messages {
		if s.Messages[i], err = dec.GetOpaque(true, 0); err != nil {
			return nil, err
		}
	}
	if s.EOF, err = dec.GetBool(); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeBlob(enc *xdr.Codec, b *BlobPacket) error {
	if err := enc.PutUint32(uint32(b.AttachmentHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(b.TransactionHandle)); err != nil {
		return err
	}
	if err := enc.PutUint64(b.BlobID); err != nil {
		return err
	}
	return enc.PutOpaque(b.BPB.Encode(), true)
}

func decodeBlob(dec *xdr.Codec) (*BlobPacket, error) {
	b := &BlobPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.AttachmentHandle = int32(h)
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.TransactionHandle = int32(h)
	if b.BlobID, err = dec.GetUint64(); err != nil {
		return nil, err
	}
	raw, err := dec.GetOpaque(true, 0)
	if err != nil {
		return nil, err
	}
	b.BPB = ParseParamBlock(raw)
	return b, nil
}

func encodeSegment(enc *xdr.Codec, s *SegmentPacket) error {
	if err := enc.PutUint32(uint32(s.BlobHandle)); err != nil {
		return err
	}
	if err := enc.PutInt32(s.BufferLength); err != nil {
		return err
	}
	if err := enc.PutOpaque(s.Data, true); err != nil {
		return err
	}
	return enc.PutBool(s.EOF)
}

func decodeSegment(dec *xdr.Codec) (*SegmentPacket, error) {
	s := &SegmentPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	s.BlobHandle = int32(h)
	if s.BufferLength, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if s.Data, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if s.EOF, err = dec.GetBool(); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeEvent(enc *xdr.Codec, e *EventPacket) error {
	if err := enc.PutUint32(uint32(e.AttachmentHandle)); err != nil {
		return err
	}
	if err := enc.PutInt32(e.EventID); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(e.AuxHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(len(e.Names))); err != nil {
		return err
	}
	for i, name := range e.Names {
		if err := enc.PutString(name, true); err != nil {
			return err
		}
		count := uint32(0)
		if i < len(e.Counts) {
			count = e.Counts[i]
		}
		if err := enc.PutUint32(count); err != nil {
			return err
		}
	}
	return nil
}

func decodeEvent(dec *xdr.Codec) (*EventPacket, error) {
	e := &EventPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	e.AttachmentHandle = int32(h)
	if e.EventID, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	e.AuxHandle = int32(h)
	count, err := dec.GetUint32()
	if err != nil {
		return nil, err
	}
	e.Names = make([]string, count)
	e.Counts = make([]uint32, count)
	for i := range e.Names {
		if e.Names[i], err = dec.GetString(true, 0); err != nil {
			return nil, err
		}
		if e.Counts[i], err = dec.GetUint32(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func encodeService(enc *xdr.Codec, s *ServicePacket) error {
	if err := enc.PutUint32(uint32(s.ServiceHandle)); err != nil {
		return err
	}
	if err := enc.PutString(s.ServiceName, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(s.SPB.Encode(), true); err != nil {
		return err
	}
	if err := enc.PutOpaque(s.SendItems, true); err != nil {
		return err
	}
	if err := enc.PutOpaque(s.ReceiveItems, true); err != nil {
		return err
	}
	return enc.PutInt32(s.BufferLength)
}

func decodeService(dec *xdr.Codec) (*ServicePacket, error) {
	s := &ServicePacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	s.ServiceHandle = int32(h)
	if s.ServiceName, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	raw, err := dec.GetOpaque(true, 0)
	if err != nil {
		return nil, err
	}
	s.SPB = ParseParamBlock(raw)
	if s.SendItems, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if s.ReceiveItems, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if s.BufferLength, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeSeekBlob(enc *xdr.Codec, b *BlobPacket) error {
	if err := enc.PutUint32(uint32(b.BlobHandle)); err != nil {
		return err
	}
	if err := enc.PutInt32(b.SeekMode); err != nil {
		return err
	}
	return enc.PutInt32(b.SeekOffset)
}

func decodeSeekBlob(dec *xdr.Codec) (*BlobPacket, error) {
	b := &BlobPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.BlobHandle = int32(h)
	if b.SeekMode, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if b.SeekOffset, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return b, nil
}

func encodeAuthCont(enc *xdr.Codec, a *AuthContPacket) error {
	if err := enc.PutOpaque(a.Data, true); err != nil {
		return err
	}
	if err := enc.PutString(a.Name, true); err != nil {
		return err
	}
	if err := enc.PutString(a.PluginList, true); err != nil {
		return err
	}
	return enc.PutOpaque(a.Keys, true)
}

func decodeAuthCont(dec *xdr.Codec) (*AuthContPacket, error) {
	a := &AuthContPacket{}
	var err error
	if a.Data, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if a.Name, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	if a.PluginList, err = dec.GetString(true, 0); err != nil {
		return nil, err
	}
	if a.Keys, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeCryptKeyCallback(enc *xdr.Codec, c *CryptKeyCallbackPacket) error {
	if err := enc.PutOpaque(c.Data, true); err != nil {
		return err
	}
	return enc.PutInt32(c.ReplyLength)
}

func decodeCryptKeyCallback(dec *xdr.Codec) (*CryptKeyCallbackPacket, error) {
	c := &CryptKeyCallbackPacket{}
	var err error
	if c.Data, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if c.ReplyLength, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeBatch(enc *xdr.Codec, b *BatchPacket) error {
	if err := enc.PutUint32(uint32(b.BatchHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(b.StatementHandle)); err != nil {
		return err
	}
	if err := enc.PutUint32(uint32(b.TransactionHandle)); err != nil {
		return err
	}
	if err := enc.PutOpaque(b.BPB.Encode(), true); err != nil {
		return err
	}
	if err := enc.PutBool(b.Segmented); err != nil {
		return err
	}
	if err := enc.PutOpaque(b.Data, true); err != nil {
		return err
	}
	return enc.PutUint64(b.BlobID)
}

func decodeBatch(dec *xdr.Codec) (*BatchPacket, error) {
	b := &BatchPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.BatchHandle = int32(h)
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.StatementHandle = int32(h)
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	b.TransactionHandle = int32(h)
	raw, err := dec.GetOpaque(true, 0)
	if err != nil {
		return nil, err
	}
	b.BPB = ParseParamBlock(raw)
	if b.Segmented, err = dec.GetBool(); err != nil {
		return nil, err
	}
	if b.Data, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if b.BlobID, err = dec.GetUint64(); err != nil {
		return nil, err
	}
	return b, nil
}

func encodeInfo(enc *xdr.Codec, i *InfoPacket) error {
	if err := enc.PutUint32(uint32(i.Handle)); err != nil {
		return err
	}
	if err := enc.PutInt32(i.Incarnation); err != nil {
		return err
	}
	if err := enc.PutOpaque(i.Items, true); err != nil {
		return err
	}
	return enc.PutInt32(i.BufferLength)
}

func decodeInfo(dec *xdr.Codec) (*InfoPacket, error) {
	i := &InfoPacket{}
	var err error
	var h uint32
	if h, err = dec.GetUint32(); err != nil {
		return nil, err
	}
	i.Handle = int32(h)
	if i.Incarnation, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	if i.Items, err = dec.GetOpaque(true, 0); err != nil {
		return nil, err
	}
	if i.BufferLength, err = dec.GetInt32(); err != nil {
		return nil, err
	}
	return i, nil
}
