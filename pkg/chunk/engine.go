// pkg/chunk/engine.go

package chunk

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"ChunkFS/pkg/cipher"
	"ChunkFS/pkg/compress"
	"ChunkFS/pkg/header"
	"ChunkFS/pkg/store"
)

// ErrObjectNotFound means the file index has no record for a path. This
// is a normal result for the caller, not a failure of the store.
var ErrObjectNotFound = errors.New("object not found")

// CorruptError means the index has a record but a chunk the record
// implies is missing or does not verify. Partial objects are never
// returned.
type CorruptError struct {
	Path    string
	ChunkID int64
	Reason  string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("object %s is corrupt: chunk %d: %s", e.Path, e.ChunkID, e.Reason)
}

// Engine drives chunk splitting, framing, encryption and store I/O. All
// collaborators are injected; it keeps no global state.
type Engine struct {
	codec *header.Codec
	store store.Store
	enc   cipher.Encryptor
	comp  compress.Compressor

	fetching Controller
	cache    *memCache
}

func NewEngine(f *store.Format, s store.Store) (*Engine, error) {
	codec, err := header.NewCodec(f)
	if err != nil {
		return nil, err
	}
	var keyEnc cipher.Encryptor
	if f.Cipher != "" && f.Cipher != cipher.None {
		if f.EncryptKey == "" {
			return nil, fmt.Errorf("cipher %s is configured but the volume has no encryption key", f.Cipher)
		}
		privKey, err := cipher.ParseRsaPrivateKeyFromPem(f.EncryptKey, os.Getenv("CHUNKFS_RSA_PASSPHRASE"))
		if err != nil {
			return nil, fmt.Errorf("load encryption key: %s", err)
		}
		keyEnc = cipher.NewRSAEncryptor(privKey)
	}
	enc, err := cipher.New(f.Cipher, keyEnc)
	if err != nil {
		return nil, err
	}
	comp := compress.NewCompressor(f.Compression)
	if comp == nil {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", f.Compression)
	}
	return &Engine{
		codec: codec,
		store: s,
		enc:   enc,
		comp:  comp,
		cache: newMemCache(int64(f.CacheSize) << 20),
	}, nil
}

// Codec exposes the header codec of this engine's volume.
func (e *Engine) Codec() *header.Codec {
	return e.codec
}

// Split cuts an object into chunks of at most MaxPayload bytes each.
// A zero-size object yields no chunks at all.
func (e *Engine) Split(data []byte, path string) ([]*Chunk, error) {
	count, err := e.codec.ChunkCount(int64(len(data)))
	if err != nil {
		return nil, err
	}
	fileID := e.currentFileID(path)
	max := e.codec.MaxPayload()
	chunks := make([]*Chunk, 0, count)
	for i := 0; i < count; i++ {
		end := (i + 1) * max
		if end > len(data) {
			end = len(data)
		}
		c := e.newChunk(fileID, int64(i), path)
		if err := c.SetPayload(data[i*max : end]); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// currentFileID resolves the id a path already has in the index, or 0
// for a path recorded for the first time (the id is assigned when the
// record is committed, after the chunks).
func (e *Engine) currentFileID(path string) int64 {
	record, err := e.store.LookupFile(path)
	if err != nil {
		return 0
	}
	return record.ID
}

// Write persists the chunks of one object in ascending chunk id order
// and commits the file record only after every chunk write succeeded, so
// a reader that sees the record can rely on all chunks existing. When a
// write fails partway, the chunks written so far are deleted again
// before the error is returned.
func (e *Engine) Write(chunks []*Chunk, path string, size int64) (*store.FileRecord, error) {
	var written []string
	for _, c := range chunks {
		key := e.codec.ChunkKey(path, c.id)
		block, err := e.codec.EncodeBlock(c.fileID, c.id, size, c.length, c.contentHash)
		if err != nil {
			e.cleanup(written)
			return nil, err
		}
		raw, err := c.Payload(false)
		if err != nil {
			e.cleanup(written)
			return nil, err
		}
		if err = e.store.Put(key, append(block, raw...)); err != nil {
			e.cleanup(written)
			return nil, errors.Wrapf(err, "write chunk %d of %s", c.id, path)
		}
		// an overwrite reuses the keys of the previous version, so any
		// cached payload under this key is now stale
		e.cache.remove(key)
		written = append(written, key)
	}
	if _, err := e.store.RecordFile(path, size); err != nil {
		e.cleanup(written)
		return nil, errors.Wrapf(err, "record file %s", path)
	}
	return e.store.LookupFile(path)
}

// cleanup deletes the chunks of a failed write so they are not left
// orphaned without an index record pointing at them.
func (e *Engine) cleanup(keys []string) {
	for _, key := range keys {
		e.cache.remove(key)
		if err := e.store.Delete(key); err != nil {
			logger.Warnf("cleanup of failed write: delete chunk %s: %s", header.KeyHash(key), err)
		}
	}
}

// Reassemble fetches, verifies and concatenates the chunks of an object.
// The chunk keys are re-derived from the path and the recorded size, not
// read back from the store.
func (e *Engine) Reassemble(path string) ([]byte, error) {
	record, err := e.store.LookupFile(path)
	if err == store.ErrNotFound {
		return nil, errors.Wrap(ErrObjectNotFound, path)
	} else if err != nil {
		return nil, err
	}
	count, err := e.codec.ChunkCount(record.Size)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, record.Size)
	for i := 0; i < count; i++ {
		payload, err := e.fetch(path, int64(i))
		if err != nil {
			return nil, err
		}
		data = append(data, payload...)
	}
	if int64(len(data)) != record.Size {
		return nil, &CorruptError{Path: path, ChunkID: int64(count) - 1,
			Reason: fmt.Sprintf("reassembled %d bytes, record says %d", len(data), record.Size)}
	}
	return data, nil
}

// fetch loads one verified plaintext chunk payload, deduplicating
// concurrent loads of the same chunk and serving repeats from the cache.
func (e *Engine) fetch(path string, chunkID int64) ([]byte, error) {
	key := e.codec.ChunkKey(path, chunkID)
	if payload, ok := e.cache.load(key); ok {
		return payload, nil
	}
	payload, err := e.fetching.Execute(key, func() ([]byte, error) {
		raw, err := e.store.Get(key)
		if err == store.ErrNotFound {
			return nil, &CorruptError{Path: path, ChunkID: chunkID, Reason: "chunk missing from store"}
		} else if err != nil {
			return nil, errors.Wrapf(err, "read chunk %d of %s", chunkID, path)
		}
		payload, err := e.decode(path, chunkID, raw)
		if err != nil {
			return nil, err
		}
		e.cache.cache(key, payload)
		return payload, nil
	})
	return payload, err
}

// decode splits a stored chunk into header block and payload, undoes
// encryption and compression, and verifies the header against what was
// fetched.
func (e *Engine) decode(path string, chunkID int64, raw []byte) ([]byte, error) {
	headerSize := e.codec.HeaderSize()
	if len(raw) < headerSize {
		return nil, &CorruptError{Path: path, ChunkID: chunkID,
			Reason: fmt.Sprintf("stored chunk is %d bytes, header alone is %d", len(raw), headerSize)}
	}
	info, err := e.codec.DecodeBlock(raw[:headerSize])
	if err != nil {
		return nil, &CorruptError{Path: path, ChunkID: chunkID, Reason: err.Error()}
	}
	if info.ChunkID != chunkID {
		return nil, &CorruptError{Path: path, ChunkID: chunkID,
			Reason: fmt.Sprintf("header names chunk %d", info.ChunkID)}
	}
	data, err := e.enc.Decrypt(raw[headerSize:])
	if err != nil {
		return nil, &CorruptError{Path: path, ChunkID: chunkID, Reason: err.Error()}
	}
	if data, err = e.comp.Decompress(data); err != nil {
		return nil, &CorruptError{Path: path, ChunkID: chunkID, Reason: err.Error()}
	}
	if err = e.codec.VerifyPayload(info, data); err != nil {
		return nil, &CorruptError{Path: path, ChunkID: chunkID, Reason: err.Error()}
	}
	return data, nil
}

// Remove deletes the index record of a path and then its chunks. The
// record goes first so readers never observe a partially deleted object
// as intact. Removing an unknown path is a no-op.
func (e *Engine) Remove(path string) error {
	record, err := e.store.LookupFile(path)
	if err == store.ErrNotFound {
		return nil
	} else if err != nil {
		return err
	}
	count, err := e.codec.ChunkCount(record.Size)
	if err != nil {
		return err
	}
	if err = e.store.DeleteFile(path); err != nil {
		return errors.Wrapf(err, "delete file record %s", path)
	}
	for i := 0; i < count; i++ {
		key := e.codec.ChunkKey(path, int64(i))
		e.cache.remove(key)
		if err = e.store.Delete(key); err != nil {
			return errors.Wrapf(err, "delete chunk %d of %s", i, path)
		}
	}
	return nil
}
