// pkg/store/leveldb_test.go

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Create("leveldb://" + filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateUnknownScheme(t *testing.T) {
	_, err := Create("carrier-pigeon://somewhere")
	assert.Error(t, err)
}

func TestInitAndLoad(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	f := &Format{Name: "vol", UUID: "u-1", ChunkSize: 1 << 20, HeaderSize: 161}
	require.NoError(t, s.Init(f, false))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "vol", loaded.Name)
	assert.Equal(t, 1<<20, loaded.ChunkSize)

	// a second format without force must not clobber the volume
	assert.Error(t, s.Init(&Format{Name: "other"}, false))
	require.NoError(t, s.Init(&Format{Name: "other", ChunkSize: 1 << 20, HeaderSize: 161}, true))
	loaded, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "other", loaded.Name)
}

func TestChunkCRUD(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	key := "a\x00\x00padded\x00key"
	require.NoError(t, s.Put(key, []byte("payload")))
	data, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, s.Delete(key))
	_, err = s.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(key))
}

func TestRecordFile(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LookupFile("a/b")
	assert.ErrorIs(t, err, ErrNotFound)

	id1, err := s.RecordFile("a/b", 100)
	require.NoError(t, err)
	id2, err := s.RecordFile("a/c", 200)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	record, err := s.LookupFile("a/b")
	require.NoError(t, err)
	assert.Equal(t, id1, record.ID)
	assert.Equal(t, "a/b", record.Path)
	assert.Equal(t, int64(100), record.Size)
	assert.False(t, record.CreatedAt.IsZero())

	// updating a path keeps its id and creation time
	id3, err := s.RecordFile("a/b", 300)
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
	updated, err := s.LookupFile("a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.Size)
	assert.Equal(t, record.CreatedAt, updated.CreatedAt)

	require.NoError(t, s.DeleteFile("a/b"))
	_, err = s.LookupFile("a/b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiles(t *testing.T) {
	s := newTestStore(t)

	for _, path := range []string{"pics/1.jpg", "pics/2.jpg", "docs/x.txt"} {
		_, err := s.RecordFile(path, 10)
		require.NoError(t, err)
	}

	records, err := s.ListFiles("pics/")
	require.NoError(t, err)
	require.Len(t, records, 2)

	records, err = s.ListFiles("")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = s.ListFiles("none/")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFormatCheck(t *testing.T) {
	f := &Format{ChunkSize: 1 << 20, HeaderSize: 161}
	assert.NoError(t, f.Check())
	assert.Equal(t, 1<<20-161, f.MaxPayload())

	assert.Error(t, (&Format{ChunkSize: 0, HeaderSize: 161}).Check())
	assert.Error(t, (&Format{ChunkSize: 100, HeaderSize: 100}).Check())
	assert.Error(t, (&Format{ChunkSize: 100, HeaderSize: -1}).Check())
}

func TestRemoveSecret(t *testing.T) {
	f := &Format{EncryptKey: "pem data"}
	f.RemoveSecret()
	assert.Equal(t, "removed", f.EncryptKey)

	f = &Format{}
	f.RemoveSecret()
	assert.Empty(t, f.EncryptKey)
}
