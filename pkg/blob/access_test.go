// pkg/blob/access_test.go

package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessRoundTrip(t *testing.T) {
	bs := newTestBlob(t)
	require.NoError(t, bs.CreateContainer("c", AccessPrivate))

	a, err := bs.ContainerAccess("c")
	require.NoError(t, err)
	assert.Equal(t, AccessPrivate, a)

	require.NoError(t, bs.SetContainerAccess("c", AccessPublicRead))
	a, err = bs.ContainerAccess("c")
	require.NoError(t, err)
	assert.Equal(t, AccessPublicRead, a)

	require.NoError(t, bs.SetContainerAccess("c", AccessPrivate))
	a, err = bs.ContainerAccess("c")
	require.NoError(t, err)
	assert.Equal(t, AccessPrivate, a)
}

func TestObjectAccess(t *testing.T) {
	bs := newTestBlob(t)
	require.NoError(t, bs.CreateContainer("c", AccessPrivate))
	_, err := bs.PutObject("c", "doc.txt", []byte("x"), nil)
	require.NoError(t, err)

	require.NoError(t, bs.SetObjectAccess("c", "doc.txt", AccessPublicRead))
	a, err := bs.ObjectAccess("c", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, AccessPublicRead, a)

	require.NoError(t, bs.SetObjectAccess("c", "doc.txt", AccessPrivate))
	a, err = bs.ObjectAccess("c", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, AccessPrivate, a)
}

func TestAccessMissingTarget(t *testing.T) {
	bs := newTestBlob(t)
	_, err := bs.ContainerAccess("ghost")
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.ErrorIs(t, bs.SetContainerAccess("ghost", AccessPublicRead), ErrContainerNotFound)
}

func TestParseAccess(t *testing.T) {
	a, ok := ParseAccess("private")
	assert.True(t, ok)
	assert.Equal(t, AccessPrivate, a)
	a, ok = ParseAccess("public-read")
	assert.True(t, ok)
	assert.Equal(t, AccessPublicRead, a)
	_, ok = ParseAccess("world-writable")
	assert.False(t, ok)

	assert.Equal(t, "private", AccessPrivate.String())
	assert.Equal(t, "public-read", AccessPublicRead.String())
}

func TestAclEntryHelpers(t *testing.T) {
	var entries []aclEntry

	entries = applyAccess(entries, AccessPublicRead)
	assert.True(t, canRead(entries, everyoneSID))
	assert.Equal(t, AccessPublicRead, accessOf(entries))

	// granting twice does not duplicate the entry
	entries = grantRead(entries, everyoneSID)
	assert.Len(t, entries, 1)

	entries = applyAccess(entries, AccessPrivate)
	assert.False(t, canRead(entries, everyoneSID))
	assert.Equal(t, AccessPrivate, accessOf(entries))

	// grants for other principals are untouched
	entries = grantRead(entries, "S-1-5-21-1-2-3-500")
	entries = applyAccess(entries, AccessPublicRead)
	entries = applyAccess(entries, AccessPrivate)
	assert.True(t, canRead(entries, "S-1-5-21-1-2-3-500"))
	assert.Equal(t, AccessPrivate, accessOf(entries))
}
