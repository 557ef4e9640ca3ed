package auth

import (
	"bytes"

	"github.com/fbremote/fbremote/internal/xdr"
)

// ClientAuthBlock is the client's opening authentication offer, packed
// into the connect packet's UserID field: the plugin it wants to try
// first, the full ordered list it supports, any data that plugin's first
// step already produced, and whether it wants wire encryption. Once the
// handshake is under way it also tracks the crypt keys the server has
// offered, so the final accept's tryNewKeys step has something to try
// against the port.
type ClientAuthBlock struct {
	PluginName string
	PluginList []string
	Data       []byte
	WireCrypt  bool

	cryptKeys []CryptKey
}

// StoreData records the continuation data the session layer just
// received from the peer, for the active plugin's next Step call.
func (b *ClientAuthBlock) StoreData(data []byte) { b.Data = data }

// Switch changes which plugin name this block currently offers, mirroring
// a server-named plugin switch mid-handshake. A blank name is a no-op.
func (b *ClientAuthBlock) Switch(name string) {
	if name != "" {
		b.PluginName = name
	}
}

// ExtractData pulls the outbound continuation bytes from a just-completed
// plugin Step, for packing into the next cont_auth/accept_data reply.
func (b *ClientAuthBlock) ExtractData(step Step) []byte { return step.DataOut }

// NewCryptKey records one crypt key the peer offered, tagged with the
// plugin that produced it.
func (b *ClientAuthBlock) NewCryptKey(pluginName string, key []byte) {
	b.cryptKeys = append(b.cryptKeys, CryptKey{PluginName: pluginName, Key: key})
}

// TryNewKeys calls apply with each recorded key, most recently added
// first, stopping at the first one apply accepts. Reports whether any key
// was accepted.
func (b *ClientAuthBlock) TryNewKeys(apply func(CryptKey) bool) bool {
	for i := len(b.cryptKeys) - 1; i >= 0; i-- {
		if apply(b.cryptKeys[i]) {
			return true
		}
	}
	return false
}

// EncodeClientAuthBlock packs b into its wire representation.
func EncodeClientAuthBlock(b ClientAuthBlock) ([]byte, error) {
	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)

	if err := enc.PutString(b.PluginName, true); err != nil {
		return nil, err
	}
	if err := enc.PutString(joinCommaList(b.PluginList), true); err != nil {
		return nil, err
	}
	if err := enc.PutOpaque(b.Data, true); err != nil {
		return nil, err
	}
	if err := enc.PutBool(b.WireCrypt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeClientAuthBlock unpacks raw (the connect packet's UserID field)
// into a ClientAuthBlock.
func DecodeClientAuthBlock(raw []byte) (ClientAuthBlock, error) {
	dec := xdr.NewDecoder(bytes.NewReader(raw))

	name, err := dec.GetString(true, 0)
	if err != nil {
		return ClientAuthBlock{}, err
	}
	listStr, err := dec.GetString(true, 0)
	if err != nil {
		return ClientAuthBlock{}, err
	}
	data, err := dec.GetOpaque(true, 0)
	if err != nil {
		return ClientAuthBlock{}, err
	}
	wireCrypt, err := dec.GetBool()
	if err != nil {
		return ClientAuthBlock{}, err
	}

	return ClientAuthBlock{
		PluginName: name,
		PluginList: splitCommaList(listStr),
		Data:       data,
		WireCrypt:  wireCrypt,
	}, nil
}

// EncodeCryptKeys packs a list of crypt keys into the raw form carried by
// an accept/cont_auth packet's Keys field: a count followed by each key's
// plugin name and key bytes.
func EncodeCryptKeys(keys []CryptKey) []byte {
	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	_ = enc.PutUint32(uint32(len(keys)))
	for _, k := range keys {
		_ = enc.PutString(k.PluginName, true)
		_ = enc.PutOpaque(k.Key, true)
	}
	return buf.Bytes()
}

// DecodeCryptKeys reverses EncodeCryptKeys. It never returns an error: an
// empty buffer, or one whose count cannot be read, yields a nil slice
// (a peer that didn't negotiate any wire-crypt key this round), and a
// buffer truncated part-way through the list yields the keys decoded
// before the break.
func DecodeCryptKeys(raw []byte) []CryptKey {
	if len(raw) == 0 {
		return nil
	}
	dec := xdr.NewDecoder(bytes.NewReader(raw))
	count, err := dec.GetUint32()
	if err != nil {
		return nil
	}
	keys := make([]CryptKey, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := dec.GetString(true, 0)
		if err != nil {
			return keys
		}
		key, err := dec.GetOpaque(true, 0)
		if err != nil {
			return keys
		}
		keys = append(keys, CryptKey{PluginName: name, Key: key})
	}
	return keys
}

func joinCommaList(items []string) string {
	var buf bytes.Buffer
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(item)
	}
	return buf.String()
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
