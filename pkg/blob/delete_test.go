// pkg/blob/delete_test.go

package blob

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDelete(t *testing.T, remove func(string) error) *[]time.Duration {
	t.Helper()
	var sleeps []time.Duration
	origRemove, origSleep := removeFile, retrySleep
	removeFile = remove
	retrySleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	t.Cleanup(func() {
		removeFile = origRemove
		retrySleep = origSleep
	})
	return &sleeps
}

func TestDeleteAlreadyGone(t *testing.T) {
	var attempts int
	stubDelete(t, func(string) error {
		attempts++
		return os.ErrNotExist
	})
	assert.NoError(t, deleteWithRetry("/x/gone"))
	assert.Equal(t, 1, attempts)
}

func TestDeleteTransientThenSuccess(t *testing.T) {
	var attempts int
	sleeps := stubDelete(t, func(string) error {
		attempts++
		if attempts < 3 {
			return &os.PathError{Op: "remove", Path: "/x/busy", Err: syscall.ENOTEMPTY}
		}
		return nil
	})
	assert.NoError(t, deleteWithRetry("/x/busy"))
	assert.Equal(t, 3, attempts)
	require.Len(t, *sleeps, 2)
	assert.Equal(t, time.Second, (*sleeps)[0])
}

func TestDeleteRetryExhaustion(t *testing.T) {
	var attempts int
	sleeps := stubDelete(t, func(string) error {
		attempts++
		return &os.PathError{Op: "remove", Path: "/x/stuck", Err: syscall.EACCES}
	})
	err := deleteWithRetry("/x/stuck")
	var deleteErr *DeleteError
	require.ErrorAs(t, err, &deleteErr)
	assert.Equal(t, "/x/stuck", deleteErr.Path)
	assert.Equal(t, deleteAttempts, deleteErr.Attempts)
	assert.Equal(t, deleteAttempts, attempts)
	assert.Len(t, *sleeps, deleteAttempts)
}

func TestDeleteUnknownErrorShortSleep(t *testing.T) {
	var attempts int
	sleeps := stubDelete(t, func(string) error {
		attempts++
		if attempts == 1 {
			return &os.PathError{Op: "remove", Path: "/x/flaky", Err: syscall.EIO}
		}
		return nil
	})
	assert.NoError(t, deleteWithRetry("/x/flaky"))
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 200*time.Millisecond, (*sleeps)[0])
}
