// pkg/store/format.go

package store

import "fmt"

// Format describes a formatted volume. It is written into the chunk store
// when the volume is formatted and loaded back by every command.
type Format struct {
	Name            string
	UUID            string
	BaseDir         string
	AutoContentType bool
	Cipher          string // none, aes128, aes192, aes256
	EncryptKey      string `json:",omitempty"` // PEM encoded RSA private key
	Compression     string // none, lz4, zstd
	ChunkSize       int    // size of a chunk in bytes, including its header
	HeaderSize      int    // size of the header block in bytes
	CompanyHash     string
	ApplicationHash string
	RaidLevel       string
	RaidLength      string
	ContentTag      string         // constant integrity tag used in chunk keys
	CacheSize       int            // read cache capacity in MiB, 0 disables it
	FieldWidths     map[string]int `json:",omitempty"` // per-field width overrides
}

func (f *Format) RemoveSecret() {
	if f.EncryptKey != "" {
		f.EncryptKey = "removed"
	}
}

// MaxPayload is the number of payload bytes that fit in one chunk.
func (f *Format) MaxPayload() int {
	return f.ChunkSize - f.HeaderSize
}

// Check validates the sizes that every other component derives from.
func (f *Format) Check() error {
	if f.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", f.ChunkSize)
	}
	if f.HeaderSize < 0 {
		return fmt.Errorf("header size must not be negative: %d", f.HeaderSize)
	}
	if f.HeaderSize >= f.ChunkSize {
		return fmt.Errorf("header size %d leaves no room for payload in chunk size %d",
			f.HeaderSize, f.ChunkSize)
	}
	for name, w := range f.FieldWidths {
		if w < 0 {
			return fmt.Errorf("negative width %d for header field %s", w, name)
		}
	}
	return nil
}
