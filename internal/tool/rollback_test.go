package tool

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
)

func TestRollbackOutOfOrderIsHistoryInconsistency(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/a.txt", "a")
	e.writeArchive("p2", "misc/b.txt", "b")
	e.applyCommitted(miscPatch("p1", addMisc("a.txt", "a")))
	e.applyCommitted(miscPatch("p2", addMisc("b.txt", "b")))
	before := e.tree()

	_, err := e.tool.Rollback("p1", nil, false, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, patch.ErrHistoryInconsistency))
	var inconsistency *patch.HistoryInconsistencyError
	require.True(t, errors.As(err, &inconsistency))
	assert.Equal(t, "p2", inconsistency.Top)
	assert.Equal(t, before, e.tree())
	assert.Equal(t, []string{"p1", "p2"}, e.identity().Patches)
	assert.True(t, e.patchDirExists("p1"))
}

func TestRollbackOfUnknownPatch(t *testing.T) {
	e := newEnv(t)
	_, err := e.tool.Rollback("nope", nil, false, false)
	assert.True(t, errors.Is(err, patch.ErrNotApplied))
	_, statErr := os.Stat(e.store.Dir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRollbackKeepsUserFileInCreatedDirectory(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/newdir/a.txt", "a")
	e.applyCommitted(miscPatch("p1", addMisc("newdir/a.txt", "a")))
	e.writeHome("newdir/user.txt", "mine")

	_, err := e.tool.Rollback("p1", nil, false, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, patch.ErrContentConflict))
	var conflict *patch.ContentConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, patch.NewMiscDirItem("newdir"), conflict.Conflicts[0].Item)
	assert.Contains(t, err.Error(), "user.txt")
	assert.Equal(t, "a", e.readHome("newdir/a.txt"))
	assert.Equal(t, "mine", e.readHome("newdir/user.txt"))
	assert.Equal(t, []string{"p1"}, e.identity().Patches)

	result, err := e.tool.Rollback("p1", policy.NewBuilder().PreserveItem("newdir").Build(), false, false)
	require.NoError(t, err)
	require.NoError(t, result.Commit())

	assert.False(t, e.existsHome("newdir/a.txt"))
	assert.Equal(t, "mine", e.readHome("newdir/user.txt"))
	require.Len(t, result.Preserved, 1)
	assert.Empty(t, e.identity().Patches)
}

func TestRollbackPrunesEmptiedCreatedDirectories(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/a/b/c.txt", "c")
	e.applyCommitted(miscPatch("p1", addMisc("a/b/c.txt", "c")))
	result, err := e.tool.Rollback("p1", nil, false, false)
	require.NoError(t, err)

	removals := result.Applied
	require.Len(t, removals, 3)
	assert.Equal(t, patch.NewMiscItem("a/b/c.txt"), removals[0].Item)
	assert.Equal(t, patch.NewMiscDirItem("a/b"), removals[1].Item)
	assert.Equal(t, patch.NewMiscDirItem("a"), removals[2].Item)

	require.NoError(t, result.Commit())
	assert.False(t, e.existsHome("a"))
}

func TestRollbackElementOutOfOrder(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/a.txt", "a")
	e.applyCommitted(miscPatch("p1", addMisc("a.txt", "a")))

	// An element recorded by p1 is not the top of its layer.
	id := e.identity()
	base, _ := id.Target(baseLayer)
	base.Patches = append(base.Patches, "base-later")
	require.NoError(t, e.store.Save(id))
	record, err := e.store.ReadRecord("p1")
	require.NoError(t, err)
	record.Elements = append(record.Elements, recordElement("base-p1", baseLayer))
	require.NoError(t, e.store.WriteRecord(record))

	_, err = e.tool.Rollback("p1", nil, false, false)

	var inconsistency *patch.HistoryInconsistencyError
	require.True(t, errors.As(err, &inconsistency))
	assert.Equal(t, "base-p1", inconsistency.PatchID)
	assert.Equal(t, "base-later", inconsistency.Top)
	assert.Equal(t, "a", e.readHome("a.txt"))
}

func TestRollbackToUnwindsRangeInOneTransaction(t *testing.T) {
	e := newEnv(t)
	e.writeHome("a.txt", "v1")
	e.writeHome("old.txt", "old")
	before := e.tree()

	e.writeArchive("p1", "misc/a.txt", "v2")
	e.applyCommitted(miscPatch("p1", modifyMisc("a.txt", "v1", "v2"), removeMisc("old.txt", "old")))
	e.writeArchive("p2", "misc/a.txt", "v3")
	e.writeArchive("p2", "misc/new/n.txt", "n")
	e.applyCommitted(miscPatch("p2", modifyMisc("a.txt", "v2", "v3"), addMisc("new/n.txt", "n")))
	e.writeArchive("p3", "misc/old.txt", "again")
	e.applyCommitted(miscPatch("p3", addMisc("old.txt", "again")))

	result := e.rollbackCommitted("p1", true)

	assert.Equal(t, before, e.tree())
	assert.Empty(t, e.identity().Patches)
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.False(t, e.patchDirExists(id), id)
	}
	touched := map[string]int{}
	for _, mod := range result.Applied {
		touched[mod.Item.ID()]++
	}
	assert.Equal(t, 1, touched["misc/a.txt"], "merged into one modification")
	assert.Equal(t, 1, touched["misc/old.txt"])
}

func TestRollbackToFromTopIsPlainRollback(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/a.txt", "a")
	e.writeArchive("p2", "misc/b.txt", "b")
	e.applyCommitted(miscPatch("p1", addMisc("a.txt", "a")))
	e.applyCommitted(miscPatch("p2", addMisc("b.txt", "b")))

	e.rollbackCommitted("p2", true)

	assert.Equal(t, []string{"p1"}, e.identity().Patches)
	assert.True(t, e.existsHome("a.txt"))
	assert.False(t, e.existsHome("b.txt"))
}

func TestRollbackConflictHonorsPolicy(t *testing.T) {
	e := newEnv(t)
	e.writeHome("a.txt", "v1")
	e.writeArchive("p1", "misc/a.txt", "v2")
	e.applyCommitted(miscPatch("p1", modifyMisc("a.txt", "v1", "v2")))
	e.writeHome("a.txt", "edited")

	_, err := e.tool.Rollback("p1", nil, false, false)
	require.True(t, errors.Is(err, patch.ErrContentConflict))
	assert.Equal(t, "edited", e.readHome("a.txt"))
	assert.Equal(t, []string{"p1"}, e.identity().Patches)

	result, err := e.tool.Rollback("p1", policy.NewBuilder().OverrideAll().Build(), false, false)
	require.NoError(t, err)
	require.NoError(t, result.Commit())
	assert.Equal(t, "v1", e.readHome("a.txt"))
}

func TestRollbackDiscardKeepsPatchApplied(t *testing.T) {
	e := newEnv(t)
	e.writeHome("a.txt", "v1")
	e.writeArchive("p1", "misc/a.txt", "v2")
	e.writeArchive("p1", "misc/n/b.txt", "b")
	e.applyCommitted(miscPatch("p1", modifyMisc("a.txt", "v1", "v2"), addMisc("n/b.txt", "b")))
	applied := e.tree()

	result, err := e.tool.Rollback("p1", nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, "v1", e.readHome("a.txt"))
	require.NoError(t, result.Discard())

	assert.Equal(t, applied, e.tree())
	assert.Equal(t, []string{"p1"}, e.identity().Patches)
	assert.True(t, e.patchDirExists("p1"))

	e.rollbackCommitted("p1", false)
	assert.Equal(t, "v1", e.readHome("a.txt"))
	assert.False(t, e.existsHome("n"))
}

func TestRollbackResetsConfiguration(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.ConfigurationDirs = []string{"cfg"} })
	e.writeHome("cfg/app.xml", "orig")
	e.writeArchive("p1", "misc/a.txt", "a")
	e.applyCommitted(miscPatch("p1", addMisc("a.txt", "a")))
	e.writeHome("cfg/app.xml", "changed")
	e.writeHome("cfg/extra.xml", "extra")

	kept, err := e.tool.Rollback("p1", nil, false, false)
	require.NoError(t, err)
	require.NoError(t, kept.Discard())
	assert.Equal(t, "changed", e.readHome("cfg/app.xml"))

	discarded, err := e.tool.Rollback("p1", nil, false, true)
	require.NoError(t, err)
	assert.Equal(t, "orig", e.readHome("cfg/app.xml"))
	assert.False(t, e.existsHome("cfg/extra.xml"))
	require.NoError(t, discarded.Discard())
	assert.Equal(t, "changed", e.readHome("cfg/app.xml"))
	assert.Equal(t, "extra", e.readHome("cfg/extra.xml"))

	result, err := e.tool.Rollback("p1", nil, false, true)
	require.NoError(t, err)
	require.NoError(t, result.Commit())
	assert.Equal(t, "orig", e.readHome("cfg/app.xml"))
	assert.False(t, e.existsHome("a.txt"))
}

func TestRollbackResetWithoutConfigurationBackup(t *testing.T) {
	e := newEnv(t)
	e.writeArchive("p1", "misc/a.txt", "a")
	e.applyCommitted(miscPatch("p1", addMisc("a.txt", "a")))

	withConfig, err := New(Options{Store: e.store, ConfigurationDirs: []string{"cfg"}})
	require.NoError(t, err)
	_, err = withConfig.Rollback("p1", nil, false, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration backup")
	assert.True(t, e.existsHome("a.txt"))
}

func TestCombine(t *testing.T) {
	file := patch.NewMiscItem("a.txt")
	add := patch.ContentModification{Item: file, Type: patch.ModificationAdd, TargetHash: sha("old")}
	modify := patch.ContentModification{Item: file, Type: patch.ModificationModify, TargetHash: sha("old"), ExpectedHash: sha("mid")}
	modifyNewest := patch.ContentModification{Item: file, Type: patch.ModificationModify, TargetHash: sha("mid"), ExpectedHash: sha("new")}
	remove := patch.ContentModification{Item: file, Type: patch.ModificationRemove, ExpectedHash: sha("new")}

	tests := []struct {
		name     string
		newest   patch.ContentModification
		oldest   patch.ContentModification
		wantType patch.ModificationType
		wantOK   bool
	}{
		{"modified twice", modifyNewest, modify, patch.ModificationModify, true},
		{"added then modified", modifyNewest, remove, patch.ModificationRemove, true},
		{"removed then re-added", remove, add, patch.ModificationModify, true},
		{"removed by newest only", add, modify, patch.ModificationAdd, true},
		{"added then removed", add, remove, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := (&mergedItem{newest: tt.newest, oldest: tt.oldest}).combine()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, got.Type)
			require.NoError(t, got.Validate())
			if got.Type != patch.ModificationRemove {
				assert.Equal(t, tt.oldest.TargetHash, got.TargetHash)
			}
			if got.Type != patch.ModificationAdd {
				assert.Equal(t, tt.newest.ExpectedHash, got.ExpectedHash)
			} else {
				assert.True(t, hashutil.IsNoContent(got.ExpectedHash))
			}
		})
	}
}

func recordElement(id string, p patch.Provider) identity.ElementRecord {
	return identity.ElementRecord{ID: id, Provider: p.Name, Kind: p.Kind, Modifications: []identity.ModificationRecord{}}
}

func TestMergedEntriesRemoveBeforeRecreatingPath(t *testing.T) {
	file := patch.ContentModification{Item: patch.NewMiscItem("conf"), Type: patch.ModificationAdd, TargetHash: sha("old"), ExpectedHash: hashutil.NoContent}
	dir := patch.ContentModification{Item: patch.NewMiscDirItem("conf"), Type: patch.ModificationRemove, TargetHash: hashutil.NoContent, ExpectedHash: hashutil.NoContent}
	m := &mergedUnit{items: map[string]*mergedItem{}}
	for _, mod := range []patch.ContentModification{file, dir} {
		m.items[mod.Item.Key()] = &mergedItem{newest: mod, oldest: mod}
		m.order = append(m.order, mod.Item.Key())
	}

	entries := m.entries()

	require.Len(t, entries, 2)
	assert.Equal(t, dir.Item, entries[0].mod.Item)
	assert.Equal(t, patch.ModificationRemove, entries[0].mod.Type)
	assert.Equal(t, file.Item, entries[1].mod.Item)
	assert.Equal(t, patch.ModificationAdd, entries[1].mod.Type)
}
