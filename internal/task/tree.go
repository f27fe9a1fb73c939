package task

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/patch"
)

// writeTree adds or replaces a module or bundle directory.
func (t *patchingTask) writeTree(ctx *Context) error {
	item := t.mod.Item
	switch t.before.state {
	case stateAbsent:
		ctx.record(removal(item, t.mod.TargetHash))
	case stateDir:
		ctx.record(patch.ContentModification{
			Item:         item,
			Type:         patch.ModificationModify,
			TargetHash:   t.before.hash,
			ExpectedHash: t.mod.TargetHash,
		})
		if err := deleteAll(t.path); err != nil {
			return err
		}
	}

	src, _, err := t.source.Require(item)
	if err != nil {
		return err
	}
	hash, err := hashutil.CopyTree(src, t.path)
	if err != nil {
		return &patch.PatchingError{Op: "write", Path: t.path, Err: err}
	}
	return verifyHash(t.path, t.mod.TargetHash, hash)
}

// removeTree deletes a module or bundle directory and prunes namespace
// directories left empty up to the content root.
func (t *patchingTask) removeTree(ctx *Context) error {
	if t.before.state == stateAbsent {
		return nil
	}
	ctx.record(patch.ContentModification{
		Item:         t.mod.Item,
		Type:         patch.ModificationAdd,
		TargetHash:   t.before.hash,
		ExpectedHash: hashutil.NoContent,
	})
	if err := deleteAll(t.path); err != nil {
		return err
	}
	pruneEmptyParents(ctx.Target.Root(t.mod.Item.Type), filepath.Dir(t.path))
	return nil
}

func pruneEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
