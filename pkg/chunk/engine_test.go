// pkg/chunk/engine_test.go

package chunk

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChunkFS/pkg/store"
)

func testFormat() *store.Format {
	return &store.Format{
		Name:            "test",
		ChunkSize:       177, // 16 payload bytes per chunk
		HeaderSize:      161,
		CompanyHash:     "9a6a8a32f9ee1217b4b07a31360dbd3f",
		ApplicationHash: "0c7f1a22d6a9bbdfe16a616b2a1171c9",
		RaidLevel:       "0",
		RaidLength:      "0",
		ContentTag:      "5c00f5bd39dfb1417b6bcbca9171a2e1",
		Compression:     "none",
	}
}

func newTestEngine(t *testing.T, f *store.Format) (*Engine, store.Store) {
	t.Helper()
	s, err := store.Create("leveldb://" + filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	e, err := NewEngine(f, s)
	require.NoError(t, err)
	return e, s
}

func randData(n int) []byte {
	data := make([]byte, n)
	rand.Read(data)
	return data
}

func TestRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())
	max := e.codec.MaxPayload()

	for _, size := range []int{0, 1, max - 1, max, max + 1, 3 * max} {
		path := fmt.Sprintf("roundtrip/%d.bin", size)
		data := randData(size)

		chunks, err := e.Split(data, path)
		require.NoError(t, err)
		record, err := e.Write(chunks, path, int64(size))
		require.NoError(t, err)
		assert.Equal(t, int64(size), record.Size)
		assert.Greater(t, record.ID, int64(0))

		out, err := e.Reassemble(path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, out), "size %d", size)
	}
}

func TestSplitSizes(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())
	max := e.codec.MaxPayload()

	chunks, err := e.Split(randData(3*max+5), "sized")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, int64(i), c.ID())
		assert.LessOrEqual(t, c.Length(), max)
	}
	assert.Equal(t, 5, chunks[3].Length())

	chunks, err = e.Split(nil, "empty")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestOverwriteKeepsFileID(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())

	chunks, err := e.Split(randData(10), "same/path")
	require.NoError(t, err)
	first, err := e.Write(chunks, "same/path", 10)
	require.NoError(t, err)

	chunks, err = e.Split(randData(20), "same/path")
	require.NoError(t, err)
	second, err := e.Write(chunks, "same/path", 20)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(20), second.Size)
}

func TestOverwriteInvalidatesCache(t *testing.T) {
	f := testFormat()
	f.CacheSize = 1
	e, _ := newTestEngine(t, f)

	old := []byte("old content....")
	chunks, err := e.Split(old, "cached/path")
	require.NoError(t, err)
	_, err = e.Write(chunks, "cached/path", int64(len(old)))
	require.NoError(t, err)

	// warm the read cache
	out, err := e.Reassemble("cached/path")
	require.NoError(t, err)
	require.Equal(t, old, out)

	fresh := []byte("new content....")
	chunks, err = e.Split(fresh, "cached/path")
	require.NoError(t, err)
	_, err = e.Write(chunks, "cached/path", int64(len(fresh)))
	require.NoError(t, err)

	out, err = e.Reassemble("cached/path")
	require.NoError(t, err)
	assert.Equal(t, fresh, out)
}

func TestPayloadTooBig(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())
	c := e.newChunk(1, 0, "big")
	err := c.SetPayload(randData(e.codec.MaxPayload() + 1))
	assert.Error(t, err)
	assert.NoError(t, c.SetPayload(randData(e.codec.MaxPayload())))
}

func TestChunkEqual(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())
	a := e.newChunk(1, 0, "a")
	b := e.newChunk(1, 0, "a")
	require.NoError(t, a.SetPayload([]byte("data")))
	require.NoError(t, b.SetPayload([]byte("data")))
	assert.True(t, a.Equal(b))

	c := e.newChunk(1, 1, "a")
	require.NoError(t, c.SetPayload([]byte("data")))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	d := e.newChunk(1, 0, "a")
	require.NoError(t, d.SetPayload([]byte("other length")))
	assert.False(t, a.Equal(d))
}

func TestObjectNotFound(t *testing.T) {
	e, _ := newTestEngine(t, testFormat())
	_, err := e.Reassemble("never/written")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// removing an unknown path is a no-op
	assert.NoError(t, e.Remove("never/written"))
}

func TestMissingChunkIsCorrupt(t *testing.T) {
	e, s := newTestEngine(t, testFormat())
	max := e.codec.MaxPayload()
	data := randData(2 * max)

	chunks, err := e.Split(data, "victim")
	require.NoError(t, err)
	_, err = e.Write(chunks, "victim", int64(len(data)))
	require.NoError(t, err)

	require.NoError(t, s.Delete(e.codec.ChunkKey("victim", 1)))

	_, err = e.Reassemble("victim")
	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "victim", corrupt.Path)
	assert.Equal(t, int64(1), corrupt.ChunkID)
}

func TestTamperedChunkIsCorrupt(t *testing.T) {
	e, s := newTestEngine(t, testFormat())
	data := randData(10)

	chunks, err := e.Split(data, "tampered")
	require.NoError(t, err)
	_, err = e.Write(chunks, "tampered", int64(len(data)))
	require.NoError(t, err)

	key := e.codec.ChunkKey("tampered", 0)
	raw, err := s.Get(key)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, s.Put(key, raw))

	_, err = e.Reassemble("tampered")
	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)
}

func TestRemove(t *testing.T) {
	e, s := newTestEngine(t, testFormat())
	max := e.codec.MaxPayload()
	data := randData(2 * max)

	chunks, err := e.Split(data, "gone")
	require.NoError(t, err)
	_, err = e.Write(chunks, "gone", int64(len(data)))
	require.NoError(t, err)

	require.NoError(t, e.Remove("gone"))

	_, err = e.Reassemble("gone")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	for i := int64(0); i < 2; i++ {
		_, err = s.Get(e.codec.ChunkKey("gone", i))
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
}

// failingStore refuses Put calls after a budget to provoke a partial
// write.
type failingStore struct {
	store.Store
	puts    int
	maxPuts int
}

func (f *failingStore) Put(key string, data []byte) error {
	f.puts++
	if f.puts > f.maxPuts {
		return fmt.Errorf("store full")
	}
	return f.Store.Put(key, data)
}

func TestFailedWriteCleansUp(t *testing.T) {
	f := testFormat()
	s, err := store.Create("leveldb://" + filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	failing := &failingStore{Store: s, maxPuts: 2}
	e, err := NewEngine(f, failing)
	require.NoError(t, err)

	max := e.codec.MaxPayload()
	data := randData(3 * max)
	chunks, err := e.Split(data, "partial")
	require.NoError(t, err)
	_, err = e.Write(chunks, "partial", int64(len(data)))
	require.Error(t, err)

	// the two chunks written before the failure are gone again
	for i := int64(0); i < 3; i++ {
		_, err = s.Get(e.codec.ChunkKey("partial", i))
		assert.ErrorIs(t, err, store.ErrNotFound, "chunk %d", i)
	}
	_, err = s.LookupFile("partial")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemCache(t *testing.T) {
	c := newMemCache(1 << 10)
	c.cache("a", []byte("payload"))
	data, ok := c.load("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), data)

	c.remove("a")
	_, ok = c.load("a")
	assert.False(t, ok)

	// capacity zero disables caching
	off := newMemCache(0)
	off.cache("a", []byte("payload"))
	_, ok = off.load("a")
	assert.False(t, ok)
}

func TestMemCacheEviction(t *testing.T) {
	c := newMemCache(64)
	for i := 0; i < 16; i++ {
		c.cache(fmt.Sprintf("k%d", i), make([]byte, 16))
	}
	assert.LessOrEqual(t, c.usedMemory(), int64(64+16))
}

func TestSingleFlight(t *testing.T) {
	var con Controller
	done := make(chan []byte, 10)
	gate := make(chan struct{})
	var calls int
	for i := 0; i < 10; i++ {
		go func() {
			data, err := con.Execute("key", func() ([]byte, error) {
				calls++
				<-gate
				return []byte("once"), nil
			})
			assert.NoError(t, err)
			done <- data
		}()
	}
	close(gate)
	for i := 0; i < 10; i++ {
		assert.Equal(t, []byte("once"), <-done)
	}
	assert.LessOrEqual(t, calls, 10)
}
