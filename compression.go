package hbase

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor transparently compresses cell values on the way out and
// decompresses them on the way back in. Values are sniffed on read, so a
// table written without compression stays readable.
type Compressor interface {
	Compress(in []byte) []byte
	Decompress(in []byte) ([]byte, error)
}

func NewCompressor(mode string) (Compressor, error) {
	switch mode {
	case "zstd":
		return NewZstdCompressor(), nil
	case "", "none", "false", "no":
		return NewNoOpCompressor(), nil
	default:
		return nil, fmt.Errorf("invalid compression value %q, use 'zstd' or 'none'", mode)
	}
}

type NoOpCompressor struct{}

func NewNoOpCompressor() *NoOpCompressor {
	return &NoOpCompressor{}
}

func (NoOpCompressor) Compress(in []byte) []byte {
	return in
}
func (NoOpCompressor) Decompress(in []byte) ([]byte, error) {
	return in, nil
}

// compressionThreshold is the value size under which compression is skipped,
// small values rarely win anything.
const compressionThreshold = 256

type ZstdCompressor struct {
	dec *zstd.Decoder
	enc *zstd.Encoder
}

func NewZstdCompressor() *ZstdCompressor {
	enc, _ := zstd.NewWriter(nil) // Errors only on failed `opts` application
	dec, _ := zstd.NewReader(nil)
	return &ZstdCompressor{
		dec: dec,
		enc: enc,
	}
}

func (c *ZstdCompressor) Compress(in []byte) (out []byte) {
	if len(in) > compressionThreshold {
		return c.enc.EncodeAll(in, out)
	}
	return in
}

var zstdMagicBytes = []byte{0x28, 0xB5, 0x2F, 0xFD}

func (c *ZstdCompressor) Decompress(in []byte) ([]byte, error) {
	if len(in) > 4 && bytes.Equal(in[:4], zstdMagicBytes) {
		buf, err := c.dec.DecodeAll(in, nil)
		if err != nil {
			return nil, err
		}
		return buf, nil
	}

	return in, nil
}
