package wire

import "github.com/fbremote/fbremote/internal/bytesize"

// ParamBlock is the common shape backing DPB (database), TPB (transaction),
// SPB (service), and BPB (blob) parameter blocks: a version byte followed
// by a run of tag/length/value clusters. The engine never needs to
// interpret every tag defined by the protocol, so ParamBlock exposes the
// clusters generically and lets callers look up the tags they care about.
type ParamBlock struct {
	Version byte
	Items   []ParamItem
}

// ParamItem is one tag/value cluster within a parameter block. Value is the
// raw cluster payload; numeric items are commonly 1, 2, or 4 bytes
// little-endian per the protocol's parameter-block convention (distinct
// from the big-endian XDR used for packet bodies).
type ParamItem struct {
	Tag   byte
	Value []byte
}

// ParseParamBlock decodes raw into a ParamBlock. An empty input yields a
// zero-version, empty-item block rather than an error, since an absent
// parameter block is a valid (if unusual) request.
func ParseParamBlock(raw []byte) ParamBlock {
	if len(raw) == 0 {
		return ParamBlock{}
	}

	pb := ParamBlock{Version: raw[0]}
	i := 1
	for i < len(raw) {
		tag := raw[i]
		i++
		if i >= len(raw) {
			break
		}
		length := int(raw[i])
		i++
		if i+length > len(raw) {
			break
		}
		pb.Items = append(pb.Items, ParamItem{Tag: tag, Value: raw[i : i+length]})
		i += length
	}
	return pb
}

// Encode serializes pb back to its wire form.
func (pb ParamBlock) Encode() []byte {
	out := []byte{pb.Version}
	for _, item := range pb.Items {
		out = append(out, item.Tag, byte(len(item.Value)))
		out = append(out, item.Value...)
	}
	return out
}

// Lookup returns the first item with the given tag.
func (pb ParamBlock) Lookup(tag byte) (ParamItem, bool) {
	for _, item := range pb.Items {
		if item.Tag == tag {
			return item, true
		}
	}
	return ParamItem{}, false
}

// String returns the value of tag interpreted as a raw byte string, or ""
// if absent.
func (pb ParamBlock) String(tag byte) string {
	item, ok := pb.Lookup(tag)
	if !ok {
		return ""
	}
	return string(item.Value)
}

// Uint32 returns the value of tag interpreted as a little-endian unsigned
// integer of its actual stored width (1, 2, or 4 bytes), or 0 if absent.
func (pb ParamBlock) Uint32(tag byte) uint32 {
	item, ok := pb.Lookup(tag)
	if !ok {
		return 0
	}
	var n uint32
	for i, b := range item.Value {
		n |= uint32(b) << (8 * uint(i))
	}
	return n
}

// ScaledNumber returns the value of tag interpreted as a k/m/g-scaled
// numeric string, e.g. an isc_spb_* parameter carrying "64k" for a buffer
// size. An absent tag or one that fails to parse yields 0, matching
// bytesize.ParseScaledNumber's fail-closed-to-zero policy.
func (pb ParamBlock) ScaledNumber(tag byte) int64 {
	item, ok := pb.Lookup(tag)
	if !ok {
		return 0
	}
	return bytesize.ParseScaledNumber(string(item.Value))
}

// WithString returns pb with a string-valued item appended or replaced.
func (pb ParamBlock) WithString(tag byte, value string) ParamBlock {
	return pb.with(tag, []byte(value))
}

// WithUint32 returns pb with a 4-byte little-endian integer item appended
// or replaced.
func (pb ParamBlock) WithUint32(tag byte, value uint32) ParamBlock {
	b := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	return pb.with(tag, b)
}

func (pb ParamBlock) with(tag byte, value []byte) ParamBlock {
	for i, item := range pb.Items {
		if item.Tag == tag {
			pb.Items[i].Value = value
			return pb
		}
	}
	pb.Items = append(pb.Items, ParamItem{Tag: tag, Value: value})
	return pb
}
