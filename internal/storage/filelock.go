package storage

import (
	"fmt"
	"os"
	"syscall"
)

// lockFile takes an exclusive flock on path, creating it when missing, so
// separate mpt processes sharing one base directory serialize their writes
// to tracker.yaml. Call the returned function to release it.
func lockFile(path string) (func() error, error) {
	lf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	fd := int(lf.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		_ = lf.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	release := func() error {
		unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
		if err := lf.Close(); err != nil && unlockErr == nil {
			return err
		}
		return unlockErr
	}
	return release, nil
}
