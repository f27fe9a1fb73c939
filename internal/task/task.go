// Package task implements the per-item patching tasks: prepare verifies and
// backs up the current state, execute records the inverse change and mutates.
package task

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// Kind is the closed set of task variants, one per modification type and
// content type pair.
type Kind int

const (
	KindMiscAdd Kind = iota
	KindMiscModify
	KindMiscRemove
	KindModuleAdd
	KindModuleModify
	KindModuleRemove
	KindBundleAdd
	KindBundleModify
	KindBundleRemove
)

var kindNames = [...]string{
	KindMiscAdd:      "misc-add",
	KindMiscModify:   "misc-modify",
	KindMiscRemove:   "misc-remove",
	KindModuleAdd:    "module-add",
	KindModuleModify: "module-modify",
	KindModuleRemove: "module-remove",
	KindBundleAdd:    "bundle-add",
	KindBundleModify: "bundle-modify",
	KindBundleRemove: "bundle-remove",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf selects the task variant for mod.
func KindOf(mod patch.ContentModification) (Kind, error) {
	var base Kind
	switch mod.Item.Type {
	case patch.ContentMisc:
		base = KindMiscAdd
	case patch.ContentModule:
		base = KindModuleAdd
	case patch.ContentBundle:
		base = KindBundleAdd
	default:
		return 0, fmt.Errorf(messages.PatchContentTypeInvalidFmt, mod.Item.Type)
	}
	switch mod.Type {
	case patch.ModificationAdd:
		return base, nil
	case patch.ModificationModify:
		return base + 1, nil
	case patch.ModificationRemove:
		return base + 2, nil
	default:
		return 0, fmt.Errorf(messages.PatchModificationTypeInvalid, mod.Type)
	}
}

func (k Kind) removes() bool {
	return k == KindMiscRemove || k == KindModuleRemove || k == KindBundleRemove
}

func (k Kind) misc() bool {
	return k <= KindMiscRemove
}

// Task applies one modification. Prepare must run before Execute.
type Task interface {
	Kind() Kind
	Modification() patch.ContentModification
	// Source is the loader the new content is read from.
	Source() loader.Loader
	// IsRelevant evaluates the modification's condition.
	IsRelevant(ctx *Context) (bool, error)
	// Prepare backs up the current state and reports whether it is the state
	// the modification expects (or already its result).
	Prepare(ctx *Context) (bool, error)
	// Execute records the inverse modifications and mutates the installation.
	Execute(ctx *Context) error
	// Conflict describes the mismatch found by Prepare.
	Conflict() patch.Conflict
}

// New returns the task for mod reading new content from source.
func New(mod patch.ContentModification, source loader.Loader) (Task, error) {
	kind, err := KindOf(mod)
	if err != nil {
		return nil, err
	}
	if err := mod.Validate(); err != nil {
		return nil, err
	}
	return &patchingTask{kind: kind, mod: mod, source: source}, nil
}

type patchingTask struct {
	kind   Kind
	mod    patch.ContentModification
	source loader.Loader

	prepared  bool
	satisfied bool
	// replacing is set when an earlier task of the context deletes the path
	// before this one writes it.
	replacing bool
	// foreign is the first entry a pruning directory removal would not own.
	foreign string
	path    string
	before  snapshot
}

func (t *patchingTask) Kind() Kind {
	return t.kind
}

func (t *patchingTask) Modification() patch.ContentModification {
	return t.mod
}

func (t *patchingTask) Source() loader.Loader {
	return t.source
}

func (t *patchingTask) IsRelevant(ctx *Context) (bool, error) {
	if t.mod.Condition == nil {
		return true, nil
	}
	return t.mod.Condition.Applies(ctx)
}

func (t *patchingTask) Prepare(ctx *Context) (bool, error) {
	path, err := ctx.Target.Resolve(t.mod.Item)
	if err != nil {
		return false, &patch.PatchingError{Op: "resolve", Path: t.mod.Item.ID(), Err: err}
	}
	t.path = path
	if !t.kind.removes() && !t.mod.Item.Directory {
		if err := t.requireSource(); err != nil {
			return false, err
		}
	}

	var before snapshot
	if t.kind.misc() {
		before, err = captureMisc(ctx, t.mod.Item, path)
	} else {
		before, err = captureTree(ctx, t.mod.Item, path)
	}
	if err != nil {
		return false, &patch.PatchingError{Op: "backup", Path: path, Err: err}
	}
	t.before = before
	t.prepared = true

	if !t.kind.removes() && ctx.willRemove(path) {
		t.replacing = true
		return hashutil.IsNoContent(t.mod.ExpectedHash), nil
	}
	t.satisfied = t.reachedTarget()
	if t.satisfied {
		return true, nil
	}
	ok := t.matchesExpected()
	if ok && t.kind.removes() && t.mod.Item.Directory && ctx.PruneDirectories {
		t.foreign = t.foreignEntry(ctx)
		ok = t.foreign == ""
	}
	if ok && t.kind.removes() {
		ctx.markRemoval(path)
	}
	return ok, nil
}

// foreignEntry returns the first entry of the directory that no earlier task
// of ctx deletes, or "" when there is none.
func (t *patchingTask) foreignEntry(ctx *Context) string {
	for _, file := range t.before.files {
		if !ctx.willRemove(filepath.Join(t.path, filepath.FromSlash(file.rel))) {
			return file.rel
		}
	}
	for _, rel := range t.before.emptyDirs {
		if rel != "" && !ctx.willRemove(filepath.Join(t.path, filepath.FromSlash(rel))) {
			return rel
		}
	}
	return ""
}

// requireSource fails with a ContentNotFoundError when the new content is missing.
func (t *patchingTask) requireSource() error {
	path, info, err := t.source.Require(t.mod.Item)
	if err != nil {
		return err
	}
	if t.kind.misc() {
		if !info.Mode().IsRegular() {
			return &patch.PatchingError{Op: "load", Path: path, Err: fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, path)}
		}
		return nil
	}
	if !info.IsDir() {
		return &patch.PatchingError{Op: "load", Path: path, Err: fmt.Errorf(messages.PatchSourceNotDirectoryFmt, path)}
	}
	return nil
}

// reachedTarget reports whether the current state already is the result.
func (t *patchingTask) reachedTarget() bool {
	b := t.before
	if t.kind.removes() {
		return b.state == stateAbsent
	}
	switch {
	case t.mod.Item.Directory:
		return b.state == stateDir
	case t.kind.misc():
		return b.state == stateFile && hashutil.Equal(b.hash, t.mod.TargetHash)
	default:
		return b.state == stateDir && hashutil.Equal(b.hash, t.mod.TargetHash)
	}
}

// matchesExpected reports whether the current state is the expected pre-state.
func (t *patchingTask) matchesExpected() bool {
	b := t.before
	item := t.mod.Item
	if t.kind.removes() {
		switch {
		case item.Directory:
			return b.state == stateDir
		case t.kind.misc():
			return b.state == stateFile && hashutil.Equal(b.hash, t.mod.ExpectedHash)
		default:
			return b.state == stateDir && hashutil.Equal(b.hash, t.mod.ExpectedHash)
		}
	}
	if hashutil.IsNoContent(t.mod.ExpectedHash) {
		return b.state == stateAbsent
	}
	if item.Directory {
		return b.state == stateDir
	}
	want := stateFile
	if !t.kind.misc() {
		want = stateDir
	}
	return b.state == want && hashutil.Equal(b.hash, t.mod.ExpectedHash)
}

func (t *patchingTask) Conflict() patch.Conflict {
	conflict := patch.Conflict{Item: t.mod.Item, Path: t.path, Expected: t.mod.ExpectedHash, Actual: t.before.hash}
	if t.foreign != "" {
		conflict.Detail = fmt.Sprintf(messages.PatchDirectoryNotEmptyFmt, t.foreign)
	}
	return conflict
}

func (t *patchingTask) Execute(ctx *Context) error {
	if !t.prepared {
		return &patch.PatchingError{Op: "execute", Path: t.mod.Item.ID(), Err: fmt.Errorf(messages.TaskNotPreparedFmt, t.mod.Item.ID())}
	}
	if t.satisfied {
		return nil
	}
	if t.replacing {
		if _, err := os.Lstat(t.path); isAbsent(err) {
			t.before = snapshot{state: stateAbsent, hash: hashutil.NoContent}
		}
	}
	switch t.kind {
	case KindMiscAdd, KindMiscModify:
		if t.mod.Item.Directory {
			return t.writeMiscDir(ctx)
		}
		return t.writeMisc(ctx)
	case KindMiscRemove:
		return t.removeMisc(ctx)
	case KindModuleAdd, KindModuleModify, KindBundleAdd, KindBundleModify:
		return t.writeTree(ctx)
	case KindModuleRemove, KindBundleRemove:
		return t.removeTree(ctx)
	default:
		return fmt.Errorf(messages.TaskUnknownKindFmt, int(t.kind))
	}
}
