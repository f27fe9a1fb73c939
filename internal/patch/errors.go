package patch

import (
	"errors"
	"fmt"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
)

var (
	// ErrContentNotFound is matched by ContentNotFoundError.
	ErrContentNotFound = errors.New("content not found")
	// ErrContentConflict is matched by ContentConflictError.
	ErrContentConflict = errors.New("content conflict")
	// ErrPatching is matched by PatchingError.
	ErrPatching = errors.New("patching failed")
	// ErrHistoryInconsistency is matched by HistoryInconsistencyError.
	ErrHistoryInconsistency = errors.New("patch history inconsistency")
	// ErrAlreadyApplied reports a patch or element id already in the history.
	ErrAlreadyApplied = errors.New("patch already applied")
	// ErrNotApplied reports a rollback of an id that is not in the history.
	ErrNotApplied = errors.New("patch not applied")
	// ErrIdentityMismatch reports a patch built for another installation.
	ErrIdentityMismatch = errors.New("patch does not apply to this installation")
	// ErrInvalidPatch reports a malformed patch.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrUnknownTarget reports an element naming a layer or add-on that is not installed.
	ErrUnknownTarget = errors.New("unknown patch target")
)

// ContentNotFoundError reports content a patch needs but its source does not hold.
type ContentNotFoundError struct {
	Item ContentItem
	Path string
	Err  error
}

func (e *ContentNotFoundError) Error() string {
	return fmt.Sprintf(messages.PatchContentNotFoundFmt, e.Item.ID(), e.Path)
}

// Unwrap exposes ErrContentNotFound and the underlying cause.
func (e *ContentNotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrContentNotFound}
	}
	return []error{ErrContentNotFound, e.Err}
}

// Conflict is one item whose on-disk state differs from what the patch expects.
type Conflict struct {
	Item     ContentItem
	Path     string
	Expected []byte
	Actual   []byte
	// Detail replaces the hash comparison when the mismatch is not about content.
	Detail string
}

func (c Conflict) String() string {
	if c.Detail != "" {
		return fmt.Sprintf(messages.PatchConflictDetailFmt, c.Path, c.Item.ID(), c.Detail)
	}
	return fmt.Sprintf(messages.PatchConflictFmt, c.Path, c.Item.ID(), describeHash(c.Expected), describeHash(c.Actual))
}

func describeHash(h []byte) string {
	if hashutil.IsNoContent(h) {
		return messages.PatchHashNone
	}
	return hashutil.Format(h)
}

// ContentConflictError lists every item the policy refused to override.
type ContentConflictError struct {
	Conflicts []Conflict
}

func (e *ContentConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrContentConflict.Error()
	}
	first := e.Conflicts[0].String()
	if len(e.Conflicts) == 1 {
		return first
	}
	return fmt.Sprintf(messages.PatchConflictMoreFmt, first, len(e.Conflicts)-1)
}

// Unwrap exposes ErrContentConflict.
func (e *ContentConflictError) Unwrap() error {
	return ErrContentConflict
}

// PatchingError reports an I/O failure while preparing or executing a task.
type PatchingError struct {
	Op   string
	Path string
	Err  error
}

func (e *PatchingError) Error() string {
	return fmt.Sprintf(messages.PatchingFailedFmt, e.Op, e.Path, e.Err)
}

// Unwrap exposes ErrPatching and the underlying cause.
func (e *PatchingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPatching}
	}
	return []error{ErrPatching, e.Err}
}

// HistoryInconsistencyError reports a rollback that is not of the most recent patch.
type HistoryInconsistencyError struct {
	PatchID string
	Target  string
	Top     string
}

func (e *HistoryInconsistencyError) Error() string {
	if e.Top == "" {
		return fmt.Sprintf(messages.PatchHistoryInconsistentEmpty, e.PatchID, e.Target)
	}
	return fmt.Sprintf(messages.PatchHistoryInconsistentFmt, e.PatchID, e.Target, e.Top)
}

// Unwrap exposes ErrHistoryInconsistency.
func (e *HistoryInconsistencyError) Unwrap() error {
	return ErrHistoryInconsistency
}
