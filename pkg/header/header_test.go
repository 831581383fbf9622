// pkg/header/header_test.go

package header

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChunkFS/pkg/store"
)

func testFormat() *store.Format {
	return &store.Format{
		Name:            "test",
		ChunkSize:       1185,
		HeaderSize:      161,
		CompanyHash:     "9a6a8a32f9ee1217b4b07a31360dbd3f",
		ApplicationHash: "0c7f1a22d6a9bbdfe16a616b2a1171c9",
		RaidLevel:       "0",
		RaidLength:      "0",
		ContentTag:      "5c00f5bd39dfb1417b6bcbca9171a2e1",
	}
}

func TestChunkCount(t *testing.T) {
	codec, err := NewCodec(testFormat())
	require.NoError(t, err)
	max := int64(codec.MaxPayload())
	require.Equal(t, int64(1024), max)

	cases := []struct {
		size int64
		want int
	}{
		{0, 0},
		{1, 1},
		{max - 1, 1},
		{max, 1},
		{max + 1, 2},
		{3 * max, 3},
		{3*max + 1, 4},
	}
	for _, c := range cases {
		n, err := codec.ChunkCount(c.size)
		require.NoError(t, err)
		assert.Equal(t, c.want, n, "size %d", c.size)
	}
}

func TestPadField(t *testing.T) {
	codec, err := NewCodec(testFormat())
	require.NoError(t, err)

	padded, err := codec.PadField(FieldCompanyHash, "abc")
	require.NoError(t, err)
	assert.Len(t, padded, 32)
	assert.Equal(t, strings.Repeat("\x00", 29)+"abc", padded)

	// a value at its width passes through unchanged
	exact := strings.Repeat("x", 32)
	padded, err = codec.PadField(FieldCompanyHash, exact)
	require.NoError(t, err)
	assert.Equal(t, exact, padded)

	// an overlong value is not truncated
	long := strings.Repeat("y", 40)
	padded, err = codec.PadField(FieldCompanyHash, long)
	require.NoError(t, err)
	assert.Equal(t, long, padded)

	// the path has no width and is never padded
	padded, err = codec.PadField(FieldFilePath, "a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", padded)

	_, err = codec.PadField("Checksum", "123")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestChunkKeyDeterministic(t *testing.T) {
	c1, err := NewCodec(testFormat())
	require.NoError(t, err)
	c2, err := NewCodec(testFormat())
	require.NoError(t, err)

	key := c1.ChunkKey("docs/report.pdf", 4)
	assert.Equal(t, key, c2.ChunkKey("docs/report.pdf", 4))
	assert.NotEqual(t, key, c1.ChunkKey("docs/report.pdf", 5))
	assert.NotEqual(t, key, c1.ChunkKey("docs/report2.pdf", 4))

	// fixed widths plus the unpadded path
	assert.Len(t, key, 32+32+16+8+8+1+32+len("docs/report.pdf"))

	fields := c1.Headers("docs/report.pdf", 4)
	require.Len(t, fields, 8)
	assert.Equal(t, FieldCompanyHash, fields[0].Name)
	assert.Equal(t, FieldApplicationHash, fields[1].Name)
	assert.Equal(t, FieldFilePath, fields[2].Name)
	assert.Equal(t, "docs/report.pdf", fields[2].Value)
	assert.Equal(t, FieldChunkID, fields[3].Name)
	assert.Equal(t, FieldBlockType, fields[6].Name)
	assert.Equal(t, BlockData, fields[6].Value)
}

func TestKeyHash(t *testing.T) {
	h := KeyHash("somekey")
	assert.Len(t, h, 64)
	assert.Equal(t, h, KeyHash("somekey"))
	assert.NotEqual(t, h, KeyHash("otherkey"))
}

func TestBlockRoundTrip(t *testing.T) {
	codec, err := NewCodec(testFormat())
	require.NoError(t, err)

	payload := []byte("twelve bytes")
	hash := HashPayload(payload)
	block, err := codec.EncodeBlock(7, 3, 5000, len(payload), hash)
	require.NoError(t, err)
	assert.Len(t, block, codec.HeaderSize())

	info, err := codec.DecodeBlock(block)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.FileID)
	assert.Equal(t, int64(3), info.ChunkID)
	assert.Equal(t, int64(5000), info.FileSize)
	assert.Equal(t, int64(len(payload)), info.ChunkLength)
	assert.Equal(t, BlockData, info.BlockType)
	assert.Equal(t, "0", info.RaidLevel)
	assert.Equal(t, "0", info.RaidLength)

	require.NoError(t, codec.VerifyPayload(info, payload))
	assert.Error(t, codec.VerifyPayload(info, []byte("twelve bytfs")))
	assert.Error(t, codec.VerifyPayload(info, payload[:5]))
}

func TestDecodeBlockShort(t *testing.T) {
	codec, err := NewCodec(testFormat())
	require.NoError(t, err)
	_, err = codec.DecodeBlock(make([]byte, 10))
	assert.Error(t, err)
}

func TestCodecConfigErrors(t *testing.T) {
	f := testFormat()
	f.HeaderSize = f.ChunkSize
	_, err := NewCodec(f)
	assert.ErrorIs(t, err, ErrBadConfig)

	f = testFormat()
	f.FieldWidths = map[string]int{"No-Such-Field": 4}
	_, err = NewCodec(f)
	assert.ErrorIs(t, err, ErrUnknownField)

	f = testFormat()
	f.FieldWidths = map[string]int{FieldContentHash: 200}
	_, err = NewCodec(f)
	assert.ErrorIs(t, err, ErrBlockTooBig)

	f = testFormat()
	f.FieldWidths = map[string]int{FieldChunkID: -1}
	_, err = NewCodec(f)
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestWidthOverride(t *testing.T) {
	f := testFormat()
	f.FieldWidths = map[string]int{FieldChunkID: 4}
	codec, err := NewCodec(f)
	require.NoError(t, err)
	padded, err := codec.PadField(FieldChunkID, "7")
	require.NoError(t, err)
	assert.Equal(t, "\x00\x00\x007", padded)
}
