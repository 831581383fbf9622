// pkg/compress/compress_test.go

package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("chunkchunk"), 1000)
	random := make([]byte, 8192)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for _, name := range []string{"none", "lz4", "zstd"} {
		c := NewCompressor(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Name())
		for _, src := range [][]byte{compressible, random, []byte("x")} {
			compressed, err := c.Compress(src)
			require.NoError(t, err, name)
			out, err := c.Decompress(compressed)
			require.NoError(t, err, name)
			assert.True(t, bytes.Equal(src, out), "%s with %d bytes", name, len(src))
		}
		compressed, err := c.Compress(compressible)
		require.NoError(t, err)
		if name != "none" {
			assert.Less(t, len(compressed), len(compressible), name)
		}
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	assert.Nil(t, NewCompressor("snappy"))
	assert.NotNil(t, NewCompressor(""))
}

func TestLz4ShortBlock(t *testing.T) {
	c := NewCompressor("lz4")
	_, err := c.Decompress([]byte{1, 2})
	assert.Error(t, err)
}
