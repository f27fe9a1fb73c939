package task

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/patch"
)

// Context is shared by the tasks of one element. It owns the rollback
// modifications the tasks record while they execute.
type Context struct {
	// Target is the installation content being patched.
	Target loader.Loader
	// Backup receives pre-mutation copies.
	Backup loader.Loader
	// PruneDirectories makes a directory marker REMOVE conflict unless the
	// directory holds only content that earlier tasks of this context delete.
	PruneDirectories bool

	groups   [][]patch.ContentModification
	created  []patch.ContentItem
	seen     map[patch.ContentItem]struct{}
	removals map[string]struct{}
}

// NewContext returns a context patching target and backing up into backup.
func NewContext(target, backup loader.Loader) *Context {
	return &Context{
		Target:   target,
		Backup:   backup,
		seen:     map[patch.ContentItem]struct{}{},
		removals: map[string]struct{}{},
	}
}

// NewRollbackContext returns a context for replaying recorded inverse
// modifications. Directories are only removed once they are empty.
func NewRollbackContext(target, backup loader.Loader) *Context {
	ctx := NewContext(target, backup)
	ctx.PruneDirectories = true
	return ctx
}

// markRemoval notes that a prepared task deletes path.
func (c *Context) markRemoval(path string) {
	c.removals[filepath.Clean(path)] = struct{}{}
}

// willRemove reports whether a task prepared earlier deletes path or one of
// its parents.
func (c *Context) willRemove(path string) bool {
	p := filepath.Clean(path)
	for {
		if _, ok := c.removals[p]; ok {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// record stores the inverse of one task.
func (c *Context) record(mods ...patch.ContentModification) {
	if len(mods) == 0 {
		return
	}
	c.groups = append(c.groups, mods)
}

// trackCreated remembers misc directories a task had to create.
func (c *Context) trackCreated(dirs []string) {
	for _, dir := range dirs {
		rel, err := filepath.Rel(c.Target.MiscRoot, dir)
		if err != nil || rel == "." {
			continue
		}
		item := patch.NewMiscDirItem(filepath.ToSlash(rel))
		if _, dup := c.seen[item]; dup {
			continue
		}
		c.seen[item] = struct{}{}
		c.created = append(c.created, item)
	}
}

// RollbackModifications returns the recorded inverse modifications: the
// groups of executed tasks in reverse order, then removals of the directories
// the tasks created, deepest first.
func (c *Context) RollbackModifications() []patch.ContentModification {
	var out []patch.ContentModification
	keys := map[string]struct{}{}
	for i := len(c.groups) - 1; i >= 0; i-- {
		for _, mod := range c.groups[i] {
			out = append(out, mod)
			keys[mod.Item.Key()] = struct{}{}
		}
	}
	dirs := append([]patch.ContentItem(nil), c.created...)
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].Depth() > dirs[j].Depth() })
	for _, dir := range dirs {
		if _, dup := keys[dir.Key()]; dup {
			continue
		}
		out = append(out, patch.ContentModification{
			Item:         dir,
			Type:         patch.ModificationRemove,
			TargetHash:   hashutil.NoContent,
			ExpectedHash: hashutil.NoContent,
		})
	}
	return out
}

// CurrentHash implements patch.ConditionContext over the target loader.
func (c *Context) CurrentHash(item patch.ContentItem) ([]byte, bool, error) {
	path, err := c.Target.Resolve(item)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		if isAbsent(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if item.Type != patch.ContentMisc {
		hash, err := hashutil.HashTree(path)
		return hash, true, err
	}
	hash, err := hashutil.Hash(path)
	if info.IsDir() && errors.Is(err, hashutil.ErrDirectoryHash) {
		return nil, true, nil
	}
	return hash, true, err
}
