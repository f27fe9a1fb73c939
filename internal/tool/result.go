package tool

import (
	"fmt"
	"log/slog"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// Operations reported by PatchingResult.
const (
	OperationApply    = "apply"
	OperationRollback = "rollback"
)

// PatchingResult is an executed but not yet recorded transaction. It holds
// the installation lock until Commit or Discard.
type PatchingResult struct {
	PatchID   string
	Operation string
	// Applied lists the modifications that were executed.
	Applied []patch.ContentModification
	// Preserved lists conflicting modifications the policy skipped.
	Preserved []patch.ContentModification
	// Rollback undoes this result once it is committed.
	Rollback patch.Patch

	tx      *transaction
	lock    *fsutil.Lock
	logger  *slog.Logger
	commit  func() error
	discard func() error
}

// State is the transaction state.
func (r *PatchingResult) State() State {
	return r.tx.state
}

// Commit records the result in the installation history and releases the
// lock. A failed commit leaves the result executed so it can be discarded.
func (r *PatchingResult) Commit() error {
	if r.tx.state != StateExecuted {
		return fmt.Errorf(messages.ToolResultNotExecutedFmt, r.PatchID, r.tx.state)
	}
	if err := r.commit(); err != nil {
		return fmt.Errorf(messages.ToolCommitFailedFmt, r.PatchID, err)
	}
	if err := r.tx.advance(eventCommit); err != nil {
		return err
	}
	r.releaseLock()
	return nil
}

// Discard undoes the executed modifications from the fresh backups, removes
// them and releases the lock. Nothing is recorded.
func (r *PatchingResult) Discard() error {
	if r.tx.state != StateExecuted {
		return fmt.Errorf(messages.ToolResultNotExecutedFmt, r.PatchID, r.tx.state)
	}
	err := r.discard()
	r.tx.abort()
	r.releaseLock()
	if err != nil {
		return fmt.Errorf(messages.ToolDiscardFailedFmt, r.PatchID, err)
	}
	return nil
}

func (r *PatchingResult) releaseLock() {
	if r.lock == nil {
		return
	}
	if err := r.lock.Release(); err != nil {
		r.logger.Warn("failed to release installation lock", logging.KeyPath, r.lock.Path(), logging.KeyError, err)
	}
	r.lock = nil
}
