// pkg/store/redis.go

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeySetting = "setting"
	redisKeyNextID  = "nextfileid"
	redisPrefixFile = "f:"
	redisPrefixData = "c:"
)

type redisStore struct {
	rdb *redis.Client
}

func init() {
	Register("redis", newRedisStore)
	Register("rediss", newRedisStore)
}

func newRedisStore(addr string) (Store, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", addr, err)
	}
	if opt.Password == "" && os.Getenv("REDIS_PASSWORD") != "" {
		opt.Password = os.Getenv("REDIS_PASSWORD")
	}
	opt.MaxRetries = 3
	opt.MinRetryBackoff = time.Millisecond * 100
	opt.MaxRetryBackoff = time.Minute
	opt.ReadTimeout = time.Second * 30
	opt.WriteTimeout = time.Second * 5
	rdb := redis.NewClient(opt)
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping %s: %s", opt.Addr, err)
	}
	logger.Infof("Connected to redis store at %s", opt.Addr)
	return &redisStore{rdb: rdb}, nil
}

func (s *redisStore) Name() string {
	return "redis://" + s.rdb.Options().Addr
}

func (s *redisStore) Init(format *Format, force bool) error {
	ctx := context.Background()
	if !force {
		if n, err := s.rdb.Exists(ctx, redisKeySetting).Result(); err != nil {
			return err
		} else if n > 0 {
			return fmt.Errorf("volume at %s is already formatted, use force to overwrite", s.rdb.Options().Addr)
		}
	}
	data, err := json.Marshal(format)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKeySetting, data, 0).Err()
}

func (s *redisStore) Load() (*Format, error) {
	data, err := s.rdb.Get(context.Background(), redisKeySetting).Bytes()
	if err == redis.Nil {
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

func (s *redisStore) Put(key string, data []byte) error {
	return s.rdb.Set(context.Background(), redisPrefixData+key, data, 0).Err()
}

func (s *redisStore) Get(key string) ([]byte, error) {
	data, err := s.rdb.Get(context.Background(), redisPrefixData+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *redisStore) Delete(key string) error {
	return s.rdb.Del(context.Background(), redisPrefixData+key).Err()
}

func (s *redisStore) RecordFile(path string, size int64) (int64, error) {
	ctx := context.Background()
	now := time.Now()
	record := &FileRecord{Path: path, Size: size, CreatedAt: now, ModifiedAt: now}

	raw, err := s.rdb.Get(ctx, redisPrefixFile+path).Bytes()
	switch {
	case err == nil:
		existing := &FileRecord{}
		if err = cbor.Unmarshal(raw, existing); err != nil {
			return 0, fmt.Errorf("corrupt file record for %s: %s", path, err)
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	case err == redis.Nil:
		if record.ID, err = s.rdb.Incr(ctx, redisKeyNextID).Result(); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	raw, err = cbor.Marshal(record)
	if err != nil {
		return 0, err
	}
	if err = s.rdb.Set(ctx, redisPrefixFile+path, raw, 0).Err(); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *redisStore) LookupFile(path string) (*FileRecord, error) {
	raw, err := s.rdb.Get(context.Background(), redisPrefixFile+path).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	record := &FileRecord{}
	if err = cbor.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("corrupt file record for %s: %s", path, err)
	}
	return record, nil
}

func (s *redisStore) DeleteFile(path string) error {
	return s.rdb.Del(context.Background(), redisPrefixFile+path).Err()
}

func (s *redisStore) ListFiles(prefix string) ([]*FileRecord, error) {
	ctx := context.Background()
	var records []*FileRecord
	var cursor uint64
	match := redisPrefixFile + escapeMatch(prefix) + "*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, 1000).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			raw, err := s.rdb.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue // deleted while scanning
			} else if err != nil {
				return nil, err
			}
			record := &FileRecord{}
			if err = cbor.Unmarshal(raw, record); err != nil {
				return nil, fmt.Errorf("corrupt file record %q: %s", key, err)
			}
			records = append(records, record)
		}
		if next == 0 {
			return records, nil
		}
		cursor = next
	}
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

// escapeMatch quotes glob metacharacters so object paths scan literally.
func escapeMatch(s string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`, `\`, `\\`)
	return r.Replace(s)
}

var _ Store = (*redisStore)(nil)
