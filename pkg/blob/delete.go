// pkg/blob/delete.go

package blob

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// deleteAttempts bounds how often a delete is retried before it is
// reported as failed.
const deleteAttempts = 10

// seams for tests
var (
	removeFile = os.Remove
	retrySleep = time.Sleep
)

// DeleteError means a path could not be removed within the retry budget.
type DeleteError struct {
	Path     string
	Attempts int
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("could not delete %s after %d attempts", e.Path, e.Attempts)
}

// deleteWithRetry removes a file or empty directory, retrying transient
// failures such as a scanner briefly holding the file open or a child
// entry that is still going away. A path that is already gone counts as
// deleted.
func deleteWithRetry(path string) error {
	for i := 0; i < deleteAttempts; i++ {
		err := removeFile(path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		if errors.Is(err, syscall.ENOTEMPTY) || os.IsPermission(err) {
			logger.Debugf("delete %s: %s, waiting for it to settle", path, err)
			retrySleep(time.Second)
		} else {
			retrySleep(200 * time.Millisecond)
		}
	}
	return &DeleteError{Path: path, Attempts: deleteAttempts}
}
