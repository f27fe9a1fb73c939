package fsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/conn-castle/patchtool/internal/messages"
)

// DefaultLockTimeout is how long Acquire waits when no timeout is configured.
const DefaultLockTimeout = 30 * time.Second

var errLockBusy = errors.New(messages.FsLockBusy)

// locker is the platform lock primitive. acquire must return errLockBusy when
// another holder owns the lock.
type locker interface {
	acquire(path string) (release func() error, err error)
}

// platform is selected at build time by lock_unix.go or lock_other.go.
var platform locker = newPlatformLocker()

var lockSleep = time.Sleep
var lockPollEvery = 100 * time.Millisecond
var now = time.Now

// Lock is an exclusive advisory lock on an installation.
type Lock struct {
	path    string
	release func() error
}

// Acquire takes the lock at path, polling until timeout elapses.
// A non-positive timeout uses DefaultLockTimeout.
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	deadline := now().Add(timeout)
	for {
		release, err := platform.acquire(path)
		if err == nil {
			return &Lock{path: path, release: release}, nil
		}
		if !errors.Is(err, errLockBusy) {
			return nil, fmt.Errorf(messages.FsLockFmt, path, err)
		}
		if now().After(deadline) {
			return nil, fmt.Errorf(messages.FsLockTimeoutFmt, timeout, path)
		}
		lockSleep(lockPollEvery)
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release()
}
