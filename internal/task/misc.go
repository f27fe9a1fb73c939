package task

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// writeMisc adds or replaces a misc file.
func (t *patchingTask) writeMisc(ctx *Context) error {
	item := t.mod.Item
	switch t.before.state {
	case stateAbsent:
		ctx.record(removal(item, t.mod.TargetHash))
	case stateFile:
		ctx.record(patch.ContentModification{
			Item:         item,
			Type:         patch.ModificationModify,
			TargetHash:   t.before.hash,
			ExpectedHash: t.mod.TargetHash,
		})
	case stateDir:
		ctx.record(append([]patch.ContentModification{removal(item, t.mod.TargetHash)}, restoreEntries(item, t.before)...)...)
		if err := deleteAll(t.path); err != nil {
			return err
		}
	}

	created, err := fsutil.MkdirAllTracked(filepath.Dir(t.path), 0o755)
	if err != nil {
		return &patch.PatchingError{Op: "mkdir", Path: filepath.Dir(t.path), Err: err}
	}
	ctx.trackCreated(created)

	src, err := t.source.Open(item)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()
	perm := os.FileMode(0o644)
	if file, ok := src.(*os.File); ok {
		if info, err := file.Stat(); err == nil {
			perm = info.Mode().Perm()
		}
	}
	hash, err := hashutil.CopyAndHash(src, t.path, perm)
	if err != nil {
		return &patch.PatchingError{Op: "write", Path: t.path, Err: err}
	}
	return verifyHash(t.path, t.mod.TargetHash, hash)
}

// writeMiscDir creates a directory marker item.
func (t *patchingTask) writeMiscDir(ctx *Context) error {
	item := t.mod.Item
	switch t.before.state {
	case stateAbsent:
		ctx.record(removal(item, hashutil.NoContent))
	case stateFile:
		fileItem := item
		fileItem.Directory = false
		ctx.record(removal(item, hashutil.NoContent), patch.ContentModification{
			Item:         fileItem,
			Type:         patch.ModificationAdd,
			TargetHash:   t.before.hash,
			ExpectedHash: hashutil.NoContent,
		})
		if err := deleteAll(t.path); err != nil {
			return err
		}
	}
	created, err := fsutil.MkdirAllTracked(filepath.Dir(t.path), 0o755)
	if err != nil {
		return &patch.PatchingError{Op: "mkdir", Path: filepath.Dir(t.path), Err: err}
	}
	ctx.trackCreated(created)
	if err := os.MkdirAll(t.path, 0o755); err != nil {
		return &patch.PatchingError{Op: "mkdir", Path: t.path, Err: err}
	}
	return nil
}

// removeMisc deletes a misc file or directory. The state is captured again so
// the inverse reflects what is actually deleted.
func (t *patchingTask) removeMisc(ctx *Context) error {
	item := t.mod.Item
	current, err := captureMisc(ctx, item, t.path)
	if err != nil {
		return &patch.PatchingError{Op: "backup", Path: t.path, Err: err}
	}
	switch current.state {
	case stateAbsent:
		return nil
	case stateFile:
		fileItem := item
		fileItem.Directory = false
		ctx.record(patch.ContentModification{
			Item:         fileItem,
			Type:         patch.ModificationAdd,
			TargetHash:   current.hash,
			ExpectedHash: hashutil.NoContent,
		})
	case stateDir:
		ctx.record(restoreEntries(item, current)...)
	}
	return deleteAll(t.path)
}

// restoreEntries returns one ADD per backed up file and one directory marker
// ADD per empty directory of a misc directory snapshot.
func restoreEntries(item patch.ContentItem, snap snapshot) []patch.ContentModification {
	mods := make([]patch.ContentModification, 0, len(snap.files)+len(snap.emptyDirs))
	for _, file := range snap.files {
		mods = append(mods, patch.ContentModification{
			Item:         item.Child(file.rel, false),
			Type:         patch.ModificationAdd,
			TargetHash:   file.hash,
			ExpectedHash: hashutil.NoContent,
		})
	}
	for _, rel := range snap.emptyDirs {
		dir := item
		dir.Directory = true
		if rel != "" {
			dir = item.Child(rel, true)
		}
		mods = append(mods, patch.ContentModification{
			Item:         dir,
			Type:         patch.ModificationAdd,
			TargetHash:   hashutil.NoContent,
			ExpectedHash: hashutil.NoContent,
		})
	}
	return mods
}

func removal(item patch.ContentItem, expected []byte) patch.ContentModification {
	return patch.ContentModification{
		Item:         item,
		Type:         patch.ModificationRemove,
		TargetHash:   hashutil.NoContent,
		ExpectedHash: expected,
	}
}

func deleteAll(path string) error {
	removed, err := hashutil.RecursiveDelete(path)
	if err != nil {
		return &patch.PatchingError{Op: "delete", Path: path, Err: err}
	}
	if !removed {
		return &patch.PatchingError{Op: "delete", Path: path, Err: fmt.Errorf(messages.PatchDirectoryNotRemovedFmt, path)}
	}
	return nil
}

func verifyHash(path string, want, got []byte) error {
	if hashutil.Equal(want, got) {
		return nil
	}
	return &patch.PatchingError{
		Op:   "verify",
		Path: path,
		Err:  fmt.Errorf(messages.PatchContentHashMismatchFmt, hashutil.Format(want), hashutil.Format(got)),
	}
}
