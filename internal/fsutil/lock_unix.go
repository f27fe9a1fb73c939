//go:build unix

package fsutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/patchtool/internal/messages"
)

var flockFn = unix.Flock

type flockLocker struct{}

func newPlatformLocker() locker {
	return flockLocker{}
}

// acquire opens or creates path and takes a non-blocking exclusive flock.
func (flockLocker) acquire(path string) (func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf(messages.FsLockOpenFmt, path, err)
	}
	if err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, errLockBusy
		}
		return nil, err
	}
	return func() error {
		if err := flockFn(int(file.Fd()), unix.LOCK_UN); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	}, nil
}
