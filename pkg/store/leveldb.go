// pkg/store/leveldb.go

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes inside the database. Chunk keys may contain NUL bytes from
// header padding; leveldb keys are binary safe so they are stored as-is.
const (
	ldbKeySetting = "setting"
	ldbKeyNextID  = "nextfileid"
	ldbPrefixFile = "F" // file records by path, cbor encoded
	ldbPrefixData = "C" // chunk payloads by chunk key
)

type levelStore struct {
	sync.Mutex
	path string
	db   *leveldb.DB
}

func init() {
	Register("leveldb", newLevelStore)
}

func newLevelStore(addr string) (Store, error) {
	path := filepath.Clean(strings.TrimPrefix(addr, "leveldb://"))
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %s", path, err)
	}
	logger.Infof("Opened leveldb store at %s", path)
	return &levelStore{path: path, db: db}, nil
}

func (s *levelStore) Name() string {
	return "leveldb://" + s.path
}

func (s *levelStore) Init(format *Format, force bool) error {
	s.Lock()
	defer s.Unlock()
	if _, err := s.db.Get([]byte(ldbKeySetting), nil); err == nil && !force {
		return fmt.Errorf("volume %s is already formatted, use force to overwrite", s.path)
	}
	data, err := json.Marshal(format)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(ldbKeySetting), data, nil)
}

func (s *levelStore) Load() (*Format, error) {
	data, err := s.db.Get([]byte(ldbKeySetting), nil)
	if err == ldberrors.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var format Format
	if err = json.Unmarshal(data, &format); err != nil {
		return nil, fmt.Errorf("load format: %s", err)
	}
	return &format, nil
}

func (s *levelStore) Put(key string, data []byte) error {
	return s.db.Put(append([]byte(ldbPrefixData), key...), data, nil)
}

func (s *levelStore) Get(key string) ([]byte, error) {
	data, err := s.db.Get(append([]byte(ldbPrefixData), key...), nil)
	if err == ldberrors.ErrNotFound {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *levelStore) Delete(key string) error {
	return s.db.Delete(append([]byte(ldbPrefixData), key...), nil)
}

func (s *levelStore) RecordFile(path string, size int64) (int64, error) {
	s.Lock()
	defer s.Unlock()
	now := time.Now()
	record := &FileRecord{Path: path, Size: size, CreatedAt: now, ModifiedAt: now}

	raw, err := s.db.Get(fileKey(path), nil)
	switch {
	case err == nil:
		existing := &FileRecord{}
		if err = cbor.Unmarshal(raw, existing); err != nil {
			return 0, fmt.Errorf("corrupt file record for %s: %s", path, err)
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	case err == ldberrors.ErrNotFound:
		if record.ID, err = s.nextFileID(); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	raw, err = cbor.Marshal(record)
	if err != nil {
		return 0, err
	}
	if err = s.db.Put(fileKey(path), raw, nil); err != nil {
		return 0, err
	}
	return record.ID, nil
}

// nextFileID bumps the persisted file id sequence. Callers hold the lock.
func (s *levelStore) nextFileID() (int64, error) {
	var next uint64 = 1
	raw, err := s.db.Get([]byte(ldbKeyNextID), nil)
	if err == nil {
		next = binary.BigEndian.Uint64(raw) + 1
	} else if err != ldberrors.ErrNotFound {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err = s.db.Put([]byte(ldbKeyNextID), buf, nil); err != nil {
		return 0, err
	}
	return int64(next), nil
}

func (s *levelStore) LookupFile(path string) (*FileRecord, error) {
	raw, err := s.db.Get(fileKey(path), nil)
	if err == ldberrors.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	record := &FileRecord{}
	if err = cbor.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("corrupt file record for %s: %s", path, err)
	}
	if record.Path != path {
		return nil, fmt.Errorf("file record path mismatch: %s != %s", record.Path, path)
	}
	return record, nil
}

func (s *levelStore) DeleteFile(path string) error {
	return s.db.Delete(fileKey(path), nil)
}

func (s *levelStore) ListFiles(prefix string) ([]*FileRecord, error) {
	var records []*FileRecord
	iter := s.db.NewIterator(util.BytesPrefix(fileKey(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		record := &FileRecord{}
		if err := cbor.Unmarshal(iter.Value(), record); err != nil {
			return nil, fmt.Errorf("corrupt file record %q: %s", iter.Key(), err)
		}
		records = append(records, record)
	}
	return records, iter.Error()
}

func (s *levelStore) Close() error {
	return s.db.Close()
}

func fileKey(path string) []byte {
	return append([]byte(ldbPrefixFile), path...)
}

var _ Store = (*levelStore)(nil)
