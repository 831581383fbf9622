// pkg/compress/compress.go

// Package compress provides the optional chunk payload compression step.
package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/DataDog/zstd"
	lz4 "github.com/hungys/go-lz4"
)

type Compressor interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// NewCompressor returns the compressor for a name, or nil for an unknown
// name.
func NewCompressor(name string) Compressor {
	switch name {
	case "none", "":
		return noop{}
	case "lz4":
		return lz4Compressor{}
	case "zstd":
		return zstdCompressor{}
	}
	return nil
}

type noop struct{}

func (noop) Name() string                          { return "none" }
func (noop) Compress(src []byte) ([]byte, error)   { return src, nil }
func (noop) Decompress(src []byte) ([]byte, error) { return src, nil }

// lz4 blocks don't carry the decompressed size, so it is prefixed to the
// block as a little endian uint32.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, 4+lz4.CompressBound(len(src)))
	binary.LittleEndian.PutUint32(dst, uint32(len(src)))
	n, err := lz4.CompressDefault(src, dst[4:])
	if err != nil {
		return nil, err
	}
	return dst[:4+n], nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("lz4 block too short: %d bytes", len(src))
	}
	size := binary.LittleEndian.Uint32(src)
	dst := make([]byte, size)
	n, err := lz4.DecompressSafe(src[4:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

type zstdCompressor struct{}

func (zstdCompressor) Name() string { return "zstd" }

func (zstdCompressor) Compress(src []byte) ([]byte, error) {
	return zstd.Compress(nil, src)
}

func (zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return zstd.Decompress(nil, src)
}
