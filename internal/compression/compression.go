// Package compression implements the wire compression filter: a
// transparent io.Reader/io.Writer layer that sits between the Transport
// Layer and the XDR codec, deflating outgoing packets and inflating
// incoming ones when both peers negotiated compression during connect.
package compression

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// Level selects the zstd compression/speed tradeoff. The wire protocol
// does not negotiate a level (only whether compression is on at all), so
// this is a purely local encoder setting; the decoder adapts automatically
// regardless of the level the peer chose.
type Level int

const (
	LevelFastest Level = iota
	LevelDefault
	LevelBetter
	LevelBest
)

func (l Level) toZstd() zstd.EncoderLevel {
	switch l {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBetter:
		return zstd.SpeedBetterCompression
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Filter wraps an underlying connection with streaming zstd compression.
// Reads and writes are safe for concurrent use from one reader goroutine
// and one writer goroutine, matching the Port contract it decorates.
type Filter struct {
	under io.ReadWriter

	encMu sync.Mutex
	enc   *zstd.Encoder

	decMu sync.Mutex
	dec   *zstd.Decoder
}

// New wraps under with a compression Filter at the given level. The
// returned Filter owns no lifecycle of under; closing the Filter releases
// only the zstd encoder/decoder state, not the underlying connection.
func New(under io.ReadWriter, level Level) (*Filter, error) {
	enc, err := zstd.NewWriter(under,
		zstd.WithEncoderLevel(level.toZstd()),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, protoerr.NewProtocolError("compression: init encoder", err)
	}

	dec, err := zstd.NewReader(under,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, protoerr.NewProtocolError("compression: init decoder", err)
	}

	return &Filter{under: under, enc: enc, dec: dec}, nil
}

// Write compresses and flushes b so the peer's decoder observes it without
// waiting for more data to accumulate; the wire protocol has no framing of
// its own to signal "flush now", so every Write ends in an explicit Flush.
func (f *Filter) Write(b []byte) (int, error) {
	f.encMu.Lock()
	defer f.encMu.Unlock()

	n, err := f.enc.Write(b)
	if err != nil {
		return n, protoerr.NewNetworkError("compression: write", err)
	}
	if err := f.enc.Flush(); err != nil {
		return n, protoerr.NewNetworkError("compression: flush", err)
	}
	return n, nil
}

// Read decompresses into b.
func (f *Filter) Read(b []byte) (int, error) {
	f.decMu.Lock()
	defer f.decMu.Unlock()

	n, err := f.dec.Read(b)
	if err != nil && err != io.EOF {
		return n, protoerr.NewNetworkError("compression: read", err)
	}
	return n, err
}

// Close releases the zstd encoder and decoder. It does not close the
// underlying connection.
func (f *Filter) Close() error {
	f.encMu.Lock()
	err := f.enc.Close()
	f.encMu.Unlock()

	f.decMu.Lock()
	f.dec.Close()
	f.decMu.Unlock()

	if err != nil {
		return fmt.Errorf("compression: close encoder: %w", err)
	}
	return nil
}
