// Package tool coordinates patch transactions on an installation. Every
// operation takes the installation lock, prepares all tasks before mutating
// anything, and leaves history untouched until its result is committed.
package tool

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/policy"
)

// Options configure a PatchTool.
type Options struct {
	Store  *identity.Store
	Logger *slog.Logger
	// ConfigurationDirs are home-relative directories copied aside with
	// every applied patch.
	ConfigurationDirs []string
	LockTimeout       time.Duration
	// AutoUndo replays the recorded inverse modifications as soon as
	// execute fails instead of leaving recovery to the operator.
	AutoUndo bool
	Now      func() time.Time
}

// PatchTool applies and rolls back patches on one installation.
type PatchTool struct {
	store             *identity.Store
	logger            *slog.Logger
	configurationDirs []string
	lockTimeout       time.Duration
	autoUndo          bool
	now               func() time.Time
}

// New returns a PatchTool for opts.Store.
func New(opts Options) (*PatchTool, error) {
	if opts.Store == nil {
		return nil, errors.New(messages.ToolStoreRequired)
	}
	pt := &PatchTool{
		store:             opts.Store,
		logger:            opts.Logger,
		configurationDirs: opts.ConfigurationDirs,
		lockTimeout:       opts.LockTimeout,
		autoUndo:          opts.AutoUndo,
		now:               opts.Now,
	}
	if pt.logger == nil {
		pt.logger = logging.Discard()
	}
	if pt.lockTimeout <= 0 {
		pt.lockTimeout = fsutil.DefaultLockTimeout
	}
	if pt.now == nil {
		pt.now = time.Now
	}
	return pt, nil
}

// Store returns the history store.
func (pt *PatchTool) Store() *identity.Store {
	return pt.store
}

// Identity loads the installed identity.
func (pt *PatchTool) Identity() (*identity.InstalledIdentity, error) {
	return pt.store.Load()
}

func (pt *PatchTool) lock() (*fsutil.Lock, error) {
	if err := pt.store.EnsureDir(); err != nil {
		return nil, err
	}
	lock, err := fsutil.Acquire(pt.store.LockPath(), pt.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf(messages.ToolLockFmt, err)
	}
	return lock, nil
}

func (pt *PatchTool) release(lock *fsutil.Lock) {
	if err := lock.Release(); err != nil {
		pt.logger.Warn("failed to release installation lock", logging.KeyPath, lock.Path(), logging.KeyError, err)
	}
}

// configuration returns nil when no configuration directories are managed.
func (pt *PatchTool) configuration(backupDir, restoreFrom string) *configuration {
	if len(pt.configurationDirs) == 0 {
		return nil
	}
	return &configuration{
		home:        pt.store.Layout().Home,
		dirs:        pt.configurationDirs,
		backupDir:   backupDir,
		restoreFrom: restoreFrom,
	}
}

// run prepares and executes tx, whose backups go to backupDir. A failed
// prepare removes backupDir. A failed execute keeps it unless AutoUndo
// restored the installation.
func (pt *PatchTool) run(tx *transaction, pol policy.Policy, patchID, backupDir string) error {
	if err := tx.prepare(pol); err != nil {
		tx.abort()
		pt.removeDir(backupDir)
		return err
	}
	if err := tx.execute(); err != nil {
		tx.abort()
		return pt.recover(tx, patchID, backupDir, err)
	}
	return nil
}

func (pt *PatchTool) recover(tx *transaction, patchID, backupDir string, cause error) error {
	if !pt.autoUndo {
		tx.logger.Error("execute failed; backups kept", logging.KeyPath, backupDir, logging.KeyError, cause)
		return fmt.Errorf(messages.ToolExecuteFailedFmt, patchID, backupDir, cause)
	}
	staging := pt.store.NewStagingDir()
	undoErr := tx.undo(staging)
	pt.removeDir(staging)
	if undoErr != nil {
		tx.logger.Error("execute failed and undo failed", logging.KeyPath, backupDir, logging.KeyError, undoErr)
		return fmt.Errorf(messages.ToolAutoUndoFailedFmt, patchID, cause, undoErr)
	}
	tx.logger.Warn("execute failed; executed steps were undone", logging.KeyError, cause)
	pt.removeDir(backupDir)
	return cause
}

// discard undoes an executed transaction and removes backupDir.
func (pt *PatchTool) discard(tx *transaction, backupDir string) error {
	staging := pt.store.NewStagingDir()
	err := tx.undo(staging)
	pt.removeDir(staging)
	if err != nil {
		return err
	}
	pt.removeDir(backupDir)
	return nil
}

func (pt *PatchTool) removeDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := hashutil.RecursiveDelete(dir); err != nil {
		pt.logger.Warn("failed to remove directory", logging.KeyPath, dir, logging.KeyError, err)
	}
}
