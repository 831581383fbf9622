// pkg/store/store.go

// Package store defines the chunk store contract: a durable key to bytes
// mapping for chunk payloads plus a small file index (object path to file
// id, size and timestamps). Backends register themselves by URI scheme.
package store

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

// ErrNotFound is returned for a missing chunk key or file record.
var ErrNotFound = errors.New("not found")

// FileRecord is one entry of the file index. The index is the sole source
// of truth for the file id of a path; chunk keys are re-derived from the
// path and the recorded size, never stored.
type FileRecord struct {
	ID         int64
	Path       string
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Store is the narrow client contract the chunking engine talks to.
// Implementations are safe for concurrent use; the engine performs its
// calls sequentially and adds no locking of its own.
type Store interface {
	Name() string

	// Init writes the volume format. It fails if the volume is already
	// formatted unless force is set.
	Init(format *Format, force bool) error
	// Load reads the volume format back, ErrNotFound if never formatted.
	Load() (*Format, error)

	// Chunk payloads, addressed by chunk key.
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error

	// File index.
	RecordFile(path string, size int64) (int64, error)
	LookupFile(path string) (*FileRecord, error)
	DeleteFile(path string) error
	ListFiles(prefix string) ([]*FileRecord, error)

	Close() error
}

type Creator func(addr string) (Store, error)

var creators = make(map[string]Creator)

func Register(scheme string, creator Creator) {
	creators[scheme] = creator
}

// Create builds a store from a URI like redis://127.0.0.1:6379/1,
// leveldb:///var/chunkfs/index or sftp://user@host/chunkfs.
func Create(uri string) (Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", uri, err)
	}
	creator, ok := creators[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported store scheme %q (choose one of %s)",
			u.Scheme, strings.Join(schemes(), ", "))
	}
	return creator(uri)
}

func schemes() []string {
	var ss []string
	for s := range creators {
		ss = append(ss, s)
	}
	sort.Strings(ss)
	return ss
}
