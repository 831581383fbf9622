// pkg/blob/attrs_windows.go

//go:build windows

package blob

import (
	"encoding/json"
	"fmt"
	"os"
)

// metaStream is the NTFS alternate data stream carrying an object's
// metadata.
const metaStream = ":chunkfs.meta"

func writeMeta(path string, meta *objectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path+metaStream, data, 0644)
}

// readMeta returns nil without error when the path carries no metadata.
func readMeta(path string) (*objectMeta, error) {
	data, err := os.ReadFile(path + metaStream)
	if err != nil {
		return nil, nil
	}
	var meta objectMeta
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("metadata of %s: %s", path, err)
	}
	return &meta, nil
}

func hasMeta(path string) bool {
	_, err := os.Stat(path + metaStream)
	return err == nil
}

func removeMeta(path string) {
	_ = os.Remove(path + metaStream)
}
