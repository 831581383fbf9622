// pkg/header/header.go

// Package header encodes the fixed-width chunk header: NUL-padded fields
// concatenated into deterministic chunk keys and a fixed-size header block
// stored in front of every chunk payload.
package header

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"ChunkFS/pkg/store"
)

// Recognized header fields. File-Path carries the object path in chunk
// keys and has no configured width, so it is never padded; File-Id is the
// numeric id used in the header block instead.
const (
	FieldCompanyHash     = "Company-Hash"
	FieldApplicationHash = "Application-Hash"
	FieldFilePath        = "File-Path"
	FieldFileID          = "File-Id"
	FieldChunkID         = "Chunk-Id"
	FieldRaidLevel       = "Raid-Level"
	FieldRaidLength      = "Raid-Length"
	FieldBlockType       = "Block-Type"
	FieldContentHash     = "Content-Hash"
	FieldFileSize        = "File-Size"
	FieldChunkLength     = "Chunk-Length"
)

// Block type tags.
const (
	BlockData   = "D"
	BlockParity = "P"
)

var defaultWidths = map[string]int{
	FieldCompanyHash:     32,
	FieldApplicationHash: 32,
	FieldFileID:          16,
	FieldChunkID:         16,
	FieldRaidLevel:       8,
	FieldRaidLength:      8,
	FieldBlockType:       1,
	FieldContentHash:     32,
	FieldFileSize:        8,
	FieldChunkLength:     8,
}

// blockFields is the layout of the on-disk header block, in order.
var blockFields = []string{
	FieldCompanyHash,
	FieldApplicationHash,
	FieldFileID,
	FieldChunkID,
	FieldRaidLevel,
	FieldRaidLength,
	FieldBlockType,
	FieldContentHash,
	FieldFileSize,
	FieldChunkLength,
}

var (
	ErrUnknownField = fmt.Errorf("unknown header field")
	ErrBadConfig    = fmt.Errorf("bad chunk configuration")
	ErrBlockTooBig  = fmt.Errorf("header fields exceed the header size")
)

// Field is one named, encoded header value.
type Field struct {
	Name  string
	Value string
}

// BlockInfo is the decoded content of a header block.
type BlockInfo struct {
	FileID      int64
	ChunkID     int64
	RaidLevel   string
	RaidLength  string
	BlockType   string
	ContentHash []byte
	FileSize    int64
	ChunkLength int64
}

// Codec encodes and decodes chunk headers for one volume format.
type Codec struct {
	chunkSize  int
	headerSize int
	widths     map[string]int

	company     string
	application string
	raidLevel   string
	raidLength  string
	contentTag  string
}

func NewCodec(f *store.Format) (*Codec, error) {
	if err := f.Check(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadConfig, err)
	}
	widths := make(map[string]int, len(defaultWidths))
	for name, w := range defaultWidths {
		widths[name] = w
	}
	for name, w := range f.FieldWidths {
		if !recognized(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		widths[name] = w
	}
	c := &Codec{
		chunkSize:   f.ChunkSize,
		headerSize:  f.HeaderSize,
		widths:      widths,
		company:     f.CompanyHash,
		application: f.ApplicationHash,
		raidLevel:   f.RaidLevel,
		raidLength:  f.RaidLength,
		contentTag:  f.ContentTag,
	}
	var fixed int
	for _, name := range blockFields {
		fixed += widths[name]
	}
	if fixed > c.headerSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBlockTooBig, fixed, c.headerSize)
	}
	return c, nil
}

func recognized(name string) bool {
	if name == FieldFilePath {
		return true
	}
	_, ok := defaultWidths[name]
	return ok
}

// MaxPayload is the number of payload bytes that fit in one chunk.
func (c *Codec) MaxPayload() int {
	return c.chunkSize - c.headerSize
}

// ChunkCount returns how many chunks an object of the given size needs.
func (c *Codec) ChunkCount(size int64) (int, error) {
	max := int64(c.MaxPayload())
	if max <= 0 {
		return 0, fmt.Errorf("%w: payload size %d", ErrBadConfig, max)
	}
	return int((size + max - 1) / max), nil
}

// PadField left-pads a field value with NUL bytes to its configured
// width. Values at or beyond the width pass through unchanged; a field
// without a configured width is never padded.
func (c *Codec) PadField(name, value string) (string, error) {
	if !recognized(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	width := c.widths[name]
	if len(value) >= width {
		return value, nil
	}
	return strings.Repeat("\x00", width-len(value)) + value, nil
}

// Headers returns the ordered fields that make up the chunk key of
// (path, chunkID). The content hash slot carries the configured constant
// tag so that the key stays derivable without the chunk payload.
func (c *Codec) Headers(path string, chunkID int64) []Field {
	fields := []Field{
		{FieldCompanyHash, c.company},
		{FieldApplicationHash, c.application},
		{FieldFilePath, path},
		{FieldChunkID, formatNum(chunkID)},
		{FieldRaidLevel, c.raidLevel},
		{FieldRaidLength, c.raidLength},
		{FieldBlockType, BlockData},
		{FieldContentHash, c.contentTag},
	}
	for i, f := range fields {
		// recognized by construction
		fields[i].Value, _ = c.PadField(f.Name, f.Value)
	}
	return fields
}

// ChunkKey is the store address of chunk chunkID of the object at path.
// It is a pure function of (path, chunkID, configuration): the write and
// read paths must produce the same key.
func (c *Codec) ChunkKey(path string, chunkID int64) string {
	var key strings.Builder
	for _, f := range c.Headers(path, chunkID) {
		key.WriteString(f.Value)
	}
	return key.String()
}

// KeyHash is the identity hash derived from a chunk key.
func KeyHash(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HeaderSize is the size of the encoded header block in bytes.
func (c *Codec) HeaderSize() int {
	return c.headerSize
}

// EncodeBlock builds the fixed-size header block written in front of a
// chunk payload. Unlike the key, the content hash slot holds a genuine
// BLAKE3 hash of the plaintext payload (see HashPayload).
func (c *Codec) EncodeBlock(fileID, chunkID, fileSize int64, length int, contentHash []byte) ([]byte, error) {
	values := map[string]string{
		FieldCompanyHash:     c.company,
		FieldApplicationHash: c.application,
		FieldFileID:          formatNum(fileID),
		FieldChunkID:         formatNum(chunkID),
		FieldRaidLevel:       c.raidLevel,
		FieldRaidLength:      c.raidLength,
		FieldBlockType:       BlockData,
		FieldContentHash:     string(contentHash),
		FieldFileSize:        formatNum(fileSize),
		FieldChunkLength:     formatNum(int64(length)),
	}
	block := make([]byte, 0, c.headerSize)
	for _, name := range blockFields {
		encoded, err := c.PadField(name, values[name])
		if err != nil {
			return nil, err
		}
		block = append(block, encoded...)
	}
	if len(block) > c.headerSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBlockTooBig, len(block), c.headerSize)
	}
	return append(block, make([]byte, c.headerSize-len(block))...), nil
}

// DecodeBlock parses a header block produced by EncodeBlock.
func (c *Codec) DecodeBlock(block []byte) (*BlockInfo, error) {
	if len(block) < c.headerSize {
		return nil, fmt.Errorf("short header block: %d < %d", len(block), c.headerSize)
	}
	fields := make(map[string]string, len(blockFields))
	off := 0
	for _, name := range blockFields {
		width := c.widths[name]
		fields[name] = string(block[off : off+width])
		off += width
	}
	info := &BlockInfo{
		RaidLevel:   unpad(fields[FieldRaidLevel]),
		RaidLength:  unpad(fields[FieldRaidLength]),
		BlockType:   unpad(fields[FieldBlockType]),
		ContentHash: []byte(fields[FieldContentHash]),
	}
	var err error
	if info.FileID, err = parseNum(fields[FieldFileID]); err != nil {
		return nil, fmt.Errorf("header file id: %s", err)
	}
	if info.ChunkID, err = parseNum(fields[FieldChunkID]); err != nil {
		return nil, fmt.Errorf("header chunk id: %s", err)
	}
	if info.FileSize, err = parseNum(fields[FieldFileSize]); err != nil {
		return nil, fmt.Errorf("header file size: %s", err)
	}
	if info.ChunkLength, err = parseNum(fields[FieldChunkLength]); err != nil {
		return nil, fmt.Errorf("header chunk length: %s", err)
	}
	return info, nil
}

// Numeric fields are encoded as lowercase hex, NUL-padded like any other
// field value.
func formatNum(n int64) string {
	return strconv.FormatInt(n, 16)
}

func parseNum(s string) (int64, error) {
	return strconv.ParseInt(unpad(s), 16, 64)
}

func unpad(s string) string {
	return strings.TrimLeft(s, "\x00")
}

// HashPayload returns the BLAKE3 content hash a header block carries for
// the given payload.
func HashPayload(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	return sum[:]
}

// VerifyPayload checks a decoded header block against the plaintext
// payload it frames.
func (c *Codec) VerifyPayload(info *BlockInfo, payload []byte) error {
	if info.ChunkLength != int64(len(payload)) {
		return fmt.Errorf("chunk length mismatch: header %d, payload %d",
			info.ChunkLength, len(payload))
	}
	if !bytes.Equal(info.ContentHash, HashPayload(payload)) {
		return fmt.Errorf("content hash mismatch for chunk %d of file %d",
			info.ChunkID, info.FileID)
	}
	return nil
}
