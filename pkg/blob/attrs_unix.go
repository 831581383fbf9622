// pkg/blob/attrs_unix.go

//go:build !windows

package blob

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"
)

// metaAttr is the extended attribute carrying an object's metadata.
const metaAttr = "user.chunkfs.meta"

func writeMeta(path string, meta *objectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return unix.Setxattr(path, metaAttr, data, 0)
}

// readMeta returns nil without error when the path carries no metadata.
func readMeta(path string) (*objectMeta, error) {
	size, err := unix.Getxattr(path, metaAttr, nil)
	if err != nil {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, metaAttr, buf)
	if err != nil {
		return nil, nil
	}
	var meta objectMeta
	if err = json.Unmarshal(buf[:n], &meta); err != nil {
		return nil, fmt.Errorf("metadata of %s: %s", path, err)
	}
	return &meta, nil
}

func hasMeta(path string) bool {
	_, err := unix.Getxattr(path, metaAttr, nil)
	return err == nil
}

func removeMeta(path string) {
	_ = unix.Removexattr(path, metaAttr)
}
