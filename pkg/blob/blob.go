// pkg/blob/blob.go

// Package blob is the container/object surface on top of the chunking
// engine. Object payloads live in the chunk store; the local base
// directory holds one placeholder file per object carrying its metadata,
// so containers and keys can be walked like a filesystem.
package blob

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/store"
	"ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

var (
	// ErrInvalidName means a container name or object key was rejected
	// before any I/O happened.
	ErrInvalidName = errors.New("invalid name")
	// ErrContainerNotFound means the named container does not exist.
	ErrContainerNotFound = errors.New("container not found")
)

// objectMeta is the metadata kept with an object's placeholder.
type objectMeta struct {
	ContentMD5  string            `json:"content-md5,omitempty"`
	ContentType string            `json:"content-type,omitempty"`
	UserMeta    map[string]string `json:"user-meta,omitempty"`
	Dir         bool              `json:"dir,omitempty"`
}

// Object is one blob read back from a container.
type Object struct {
	Container   string
	Key         string
	Data        []byte
	Size        int64
	ETag        string
	ContentType string
	UserMeta    map[string]string
	ModTime     time.Time
	Dir         bool
}

// PutOptions carries optional metadata for a put.
type PutOptions struct {
	ContentType string
	UserMeta    map[string]string
}

// ContainerInfo describes one container.
type ContainerInfo struct {
	Name      string
	CreatedAt time.Time
	Access    Access
}

// Store is the blob orchestrator for one formatted volume.
type Store struct {
	format *store.Format
	engine *chunk.Engine
	base   string
}

func NewStore(f *store.Format, s store.Store) (*Store, error) {
	if f.BaseDir == "" {
		return nil, fmt.Errorf("volume %s has no base directory", f.Name)
	}
	engine, err := chunk.NewEngine(f, s)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(f.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("base directory %s: %s", f.BaseDir, err)
	}
	return &Store{format: f, engine: engine, base: f.BaseDir}, nil
}

// checkKey rejects empty keys, absolute keys and keys that escape their
// container. Validation happens before any I/O.
func checkKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidName, "empty key")
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return errors.Wrapf(ErrInvalidName, "%s: leading separator", key)
	}
	if strings.Contains(key, "\\") {
		return errors.Wrapf(ErrInvalidName, "%s: backslash", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return errors.Wrapf(ErrInvalidName, "%s: path escape", key)
		}
	}
	return nil
}

func checkContainer(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty container name")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.Wrapf(ErrInvalidName, "%s: separator in container name", name)
	}
	if name == "." || name == ".." {
		return errors.Wrapf(ErrInvalidName, "%s", name)
	}
	return nil
}

func checkNames(container, key string) error {
	if err := checkContainer(container); err != nil {
		return err
	}
	return checkKey(key)
}

// containerDir is the local directory of a container.
func (s *Store) containerDir(container string) string {
	return filepath.Join(s.base, container)
}

// objectFile is the local placeholder path of a key.
func (s *Store) objectFile(container, key string) string {
	return filepath.Join(s.base, container, filepath.FromSlash(strings.TrimSuffix(key, "/")))
}

// objectPath is the name an object has in the chunk store's file index.
func objectPath(container, key string) string {
	return container + "/" + key
}

func isDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}

// PutObject stores data under container/key and returns the hex MD5
// digest of the payload as its etag. A key with a trailing separator
// creates a directory blob instead of chunking any payload.
func (s *Store) PutObject(container, key string, data []byte, opts *PutOptions) (string, error) {
	if err := checkNames(container, key); err != nil {
		return "", err
	}
	if !s.ContainerExists(container) {
		return "", errors.Wrap(ErrContainerNotFound, container)
	}
	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])
	meta := &objectMeta{ContentMD5: etag}
	if opts != nil {
		meta.ContentType = opts.ContentType
		meta.UserMeta = opts.UserMeta
	}
	if meta.ContentType == "" && s.format.AutoContentType && len(data) > 0 {
		meta.ContentType = http.DetectContentType(data)
	}

	file := s.objectFile(container, key)
	if isDirKey(key) {
		meta.Dir = true
		if err := os.MkdirAll(file, 0755); err != nil {
			return "", errors.Wrapf(err, "create directory blob %s", key)
		}
		if err := writeMeta(file, meta); err != nil {
			return "", errors.Wrapf(err, "write metadata of %s", key)
		}
		return etag, nil
	}

	opath := objectPath(container, key)
	chunks, err := s.engine.Split(data, opath)
	if err != nil {
		return "", err
	}
	if _, err = s.engine.Write(chunks, opath, int64(len(data))); err != nil {
		return "", err
	}
	// the placeholder is what makes the object visible; if it cannot be
	// written, take the committed chunks and record back out again
	if err = os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		_ = s.engine.Remove(opath)
		return "", errors.Wrapf(err, "create parents of %s", key)
	}
	if err = os.WriteFile(file, nil, 0644); err != nil {
		_ = s.engine.Remove(opath)
		return "", errors.Wrapf(err, "write placeholder of %s", key)
	}
	if err = writeMeta(file, meta); err != nil {
		_ = deleteWithRetry(file)
		_ = s.engine.Remove(opath)
		return "", errors.Wrapf(err, "write metadata of %s", key)
	}
	return etag, nil
}

// GetObject reassembles the payload of container/key and returns it with
// the metadata of its placeholder.
func (s *Store) GetObject(container, key string) (*Object, error) {
	if err := checkNames(container, key); err != nil {
		return nil, err
	}
	file := s.objectFile(container, key)
	fi, err := os.Stat(file)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(chunk.ErrObjectNotFound, objectPath(container, key))
	} else if err != nil {
		return nil, err
	}
	obj := &Object{Container: container, Key: key, ModTime: fi.ModTime()}
	meta, err := readMeta(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read metadata of %s", key)
	}
	if meta != nil {
		obj.ETag = meta.ContentMD5
		obj.ContentType = meta.ContentType
		obj.UserMeta = meta.UserMeta
		obj.Dir = meta.Dir
	}
	if isDirKey(key) || obj.Dir {
		obj.Dir = true
		return obj, nil
	}
	data, err := s.engine.Reassemble(objectPath(container, key))
	if err != nil {
		return nil, err
	}
	obj.Data = data
	obj.Size = int64(len(data))
	return obj, nil
}

// ObjectExists reports whether container/key has a placeholder.
func (s *Store) ObjectExists(container, key string) (bool, error) {
	if err := checkNames(container, key); err != nil {
		return false, err
	}
	fi, err := os.Stat(s.objectFile(container, key))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if isDirKey(key) {
		return fi.IsDir() && hasMeta(s.objectFile(container, key)), nil
	}
	return !fi.IsDir(), nil
}

// DeleteObject removes the chunks, the placeholder and any parent
// directories the delete left empty. Parents that are directory blobs
// themselves survive the pruning. Deleting an absent object succeeds.
func (s *Store) DeleteObject(container, key string) error {
	if err := checkNames(container, key); err != nil {
		return err
	}
	file := s.objectFile(container, key)
	if isDirKey(key) {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			return nil
		}
		removeMeta(file)
		if err := deleteWithRetry(file); err != nil {
			return err
		}
		s.pruneParents(container, key)
		return nil
	}
	if err := s.engine.Remove(objectPath(container, key)); err != nil {
		return err
	}
	if err := deleteWithRetry(file); err != nil {
		return err
	}
	s.pruneParents(container, key)
	return nil
}

// pruneParents walks from the key's directory up to the container root,
// removing directories emptied by a delete. It stops at the first
// directory that is still populated or carries blob metadata.
func (s *Store) pruneParents(container, key string) {
	root := s.containerDir(container)
	dir := filepath.Dir(s.objectFile(container, key))
	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if hasMeta(dir) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ListObjects returns all keys of a container in sorted order. Directory
// blobs are listed with a trailing separator.
func (s *Store) ListObjects(container string) ([]string, error) {
	if err := checkContainer(container); err != nil {
		return nil, err
	}
	root := s.containerDir(container)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, errors.Wrap(ErrContainerNotFound, container)
	}
	var keys []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			if hasMeta(path) {
				keys = append(keys, key+"/")
			}
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", container)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearContainer deletes every object of a container, directory blobs
// last so their contents go first.
func (s *Store) ClearContainer(container string) error {
	keys, err := s.ListObjects(container)
	if err != nil {
		return err
	}
	var dirs []string
	for _, key := range keys {
		if isDirKey(key) {
			dirs = append(dirs, key)
			continue
		}
		if err = s.DeleteObject(container, key); err != nil {
			return err
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, key := range dirs {
		if err = s.DeleteObject(container, key); err != nil {
			return err
		}
	}
	return nil
}

// CreateContainer makes a container with the given access mode. Creating
// an existing container only updates its access.
func (s *Store) CreateContainer(name string, access Access) error {
	if err := checkContainer(name); err != nil {
		return err
	}
	dir := s.containerDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create container %s", name)
	}
	return setAccess(dir, access)
}

// DeleteContainer removes a container and everything in it. Deleting an
// absent container is a no-op.
func (s *Store) DeleteContainer(name string) error {
	if err := checkContainer(name); err != nil {
		return err
	}
	dir := s.containerDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := s.ClearContainer(name); err != nil {
		return err
	}
	return deleteWithRetry(dir)
}

func (s *Store) ContainerExists(name string) bool {
	if checkContainer(name) != nil {
		return false
	}
	fi, err := os.Stat(s.containerDir(name))
	return err == nil && fi.IsDir()
}

// ListContainers returns all container names in sorted order.
func (s *Store) ListContainers() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, errors.Wrapf(err, "list containers in %s", s.base)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ContainerMetadata reports a container's creation time and access mode.
func (s *Store) ContainerMetadata(name string) (*ContainerInfo, error) {
	if err := checkContainer(name); err != nil {
		return nil, err
	}
	dir := s.containerDir(name)
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrContainerNotFound, name)
	} else if err != nil {
		return nil, err
	}
	access, err := getAccess(dir)
	if err != nil {
		return nil, err
	}
	return &ContainerInfo{Name: name, CreatedAt: fi.ModTime(), Access: access}, nil
}

// SetContainerAccess changes who may read a container.
func (s *Store) SetContainerAccess(name string, access Access) error {
	if err := checkContainer(name); err != nil {
		return err
	}
	if !s.ContainerExists(name) {
		return errors.Wrap(ErrContainerNotFound, name)
	}
	return setAccess(s.containerDir(name), access)
}

// ContainerAccess reports who may read a container.
func (s *Store) ContainerAccess(name string) (Access, error) {
	if err := checkContainer(name); err != nil {
		return AccessPrivate, err
	}
	if !s.ContainerExists(name) {
		return AccessPrivate, errors.Wrap(ErrContainerNotFound, name)
	}
	return getAccess(s.containerDir(name))
}

// SetObjectAccess changes who may read an object.
func (s *Store) SetObjectAccess(container, key string, access Access) error {
	if err := checkNames(container, key); err != nil {
		return err
	}
	if _, err := os.Stat(s.objectFile(container, key)); os.IsNotExist(err) {
		return errors.Wrap(chunk.ErrObjectNotFound, objectPath(container, key))
	} else if err != nil {
		return err
	}
	return setAccess(s.objectFile(container, key), access)
}

// ObjectAccess reports who may read an object.
func (s *Store) ObjectAccess(container, key string) (Access, error) {
	if err := checkNames(container, key); err != nil {
		return AccessPrivate, err
	}
	if _, err := os.Stat(s.objectFile(container, key)); os.IsNotExist(err) {
		return AccessPrivate, errors.Wrap(chunk.ErrObjectNotFound, objectPath(container, key))
	} else if err != nil {
		return AccessPrivate, err
	}
	return getAccess(s.objectFile(container, key))
}
