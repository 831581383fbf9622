// pkg/blob/access_unix.go

//go:build !windows

package blob

import "os"

// On POSIX filesystems the read bit for others is the whole access
// model: public-read sets it, private clears it.

func setAccess(path string, access Access) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := fi.Mode().Perm()
	if access == AccessPublicRead {
		mode |= 0o004
	} else {
		mode &^= 0o004
	}
	return os.Chmod(path, mode)
}

func getAccess(path string) (Access, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return AccessPrivate, err
	}
	if fi.Mode().Perm()&0o004 != 0 {
		return AccessPublicRead, nil
	}
	return AccessPrivate, nil
}
