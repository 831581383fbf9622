// pkg/chunk/chunk.go

// Package chunk splits objects into fixed-size chunks, frames each with a
// header block, encrypts payloads and moves them through the chunk store.
package chunk

import (
	"fmt"

	"ChunkFS/pkg/header"
	"ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

// Chunk is one slice of an object. Its payload is held in the at-rest
// form (compressed, then encrypted) from the moment it is set; the
// plaintext is only materialized again on request.
type Chunk struct {
	engine *Engine

	fileID     int64
	id         int64
	fileKey    string
	headerHash string

	length      int
	contentHash []byte
	data        []byte
}

func (e *Engine) newChunk(fileID, id int64, fileKey string) *Chunk {
	return &Chunk{
		engine:     e,
		fileID:     fileID,
		id:         id,
		fileKey:    fileKey,
		headerHash: header.KeyHash(e.codec.ChunkKey(fileKey, id)),
	}
}

func (c *Chunk) FileID() int64      { return c.fileID }
func (c *Chunk) ID() int64          { return c.id }
func (c *Chunk) FileKey() string    { return c.fileKey }
func (c *Chunk) HeaderHash() string { return c.headerHash }
func (c *Chunk) Length() int        { return c.length }

// SetPayload stores the at-rest form of a plaintext payload. An
// out-of-range length is rejected here, at the boundary, instead of
// being silently dropped.
func (c *Chunk) SetPayload(plaintext []byte) error {
	if max := c.engine.codec.MaxPayload(); len(plaintext) > max {
		return fmt.Errorf("payload of chunk %d of %s is %d bytes, limit is %d",
			c.id, c.fileKey, len(plaintext), max)
	}
	data, err := c.engine.comp.Compress(plaintext)
	if err != nil {
		return fmt.Errorf("compress chunk %d of %s: %s", c.id, c.fileKey, err)
	}
	if data, err = c.engine.enc.Encrypt(data); err != nil {
		return fmt.Errorf("encrypt chunk %d of %s: %s", c.id, c.fileKey, err)
	}
	c.length = len(plaintext)
	c.contentHash = header.HashPayload(plaintext)
	c.data = data
	return nil
}

// Payload returns the plaintext payload, or the raw at-rest bytes when
// decrypted is false.
func (c *Chunk) Payload(decrypted bool) ([]byte, error) {
	if !decrypted {
		return c.data, nil
	}
	data, err := c.engine.enc.Decrypt(c.data)
	if err != nil {
		return nil, fmt.Errorf("decrypt chunk %d of %s: %s", c.id, c.fileKey, err)
	}
	if data, err = c.engine.comp.Decompress(data); err != nil {
		return nil, fmt.Errorf("decompress chunk %d of %s: %s", c.id, c.fileKey, err)
	}
	return data, nil
}

// Equal reports identity equality: two chunks are the same iff file id,
// chunk id, length, file key and header hash all match.
func (c *Chunk) Equal(o *Chunk) bool {
	if o == nil {
		return false
	}
	return c.fileID == o.fileID &&
		c.id == o.id &&
		c.length == o.length &&
		c.fileKey == o.fileKey &&
		c.headerHash == o.headerHash
}
