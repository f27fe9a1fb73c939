//go:build !unix

package fsutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/conn-castle/patchtool/internal/messages"
)

type exclusiveFileLocker struct{}

func newPlatformLocker() locker {
	return exclusiveFileLocker{}
}

// acquire creates path exclusively; the file's existence is the lock.
func (exclusiveFileLocker) acquire(path string) (func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errLockBusy
		}
		return nil, fmt.Errorf(messages.FsLockOpenFmt, path, err)
	}
	return func() error {
		closeErr := file.Close()
		return errors.Join(closeErr, os.Remove(path))
	}, nil
}
