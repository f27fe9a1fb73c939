package tool

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/task"
	"github.com/conn-castle/patchtool/internal/testutil"
)

const (
	productName    = "product"
	productVersion = "1.0.0"
)

var (
	baseLayer    = patch.Provider{Name: "base", Kind: patch.ProviderLayer}
	metricsAddOn = patch.Provider{Name: "metrics", Kind: patch.ProviderAddOn}
	fixedTime    = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	errDiskFull  = errors.New("disk full")
)

var sha = testutil.SHA256

type env struct {
	t     *testing.T
	root  string
	home  string
	store *identity.Store
	tool  *PatchTool
}

func newEnv(t *testing.T, configure ...func(*Options)) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{t: t, root: root, home: filepath.Join(root, "home")}
	e.store = identity.NewStore(identity.Layout{Home: e.home}, identity.Defaults{
		Name:    productName,
		Version: productVersion,
		Layers:  []string{"base"},
		AddOns:  []string{"metrics"},
	})
	layout := e.store.Layout()
	for _, p := range []patch.Provider{baseLayer, metricsAddOn} {
		require.NoError(t, os.MkdirAll(layout.ModuleRoot(p), 0o755))
		require.NoError(t, os.MkdirAll(layout.BundleRoot(p), 0o755))
	}
	opts := Options{Store: e.store, Now: func() time.Time { return fixedTime }}
	for _, c := range configure {
		c(&opts)
	}
	pt, err := New(opts)
	require.NoError(t, err)
	e.tool = pt
	return e
}

func (e *env) writeHome(rel, content string) {
	testutil.WriteFile(e.t, filepath.Join(e.home, filepath.FromSlash(rel)), content)
}

func (e *env) readHome(rel string) string {
	e.t.Helper()
	data, err := os.ReadFile(filepath.Join(e.home, filepath.FromSlash(rel)))
	require.NoError(e.t, err)
	return string(data)
}

func (e *env) existsHome(rel string) bool {
	_, err := os.Lstat(filepath.Join(e.home, filepath.FromSlash(rel)))
	return err == nil
}

// archive is the content root of patchID.
func (e *env) archive(patchID string) string {
	return filepath.Join(e.root, "archives", patchID)
}

func (e *env) writeArchive(patchID, rel, content string) {
	testutil.WriteFile(e.t, filepath.Join(e.archive(patchID), filepath.FromSlash(rel)), content)
}

// tree maps every entry below home, except installation metadata, to its
// content or "<dir>".
func (e *env) tree() map[string]string {
	e.t.Helper()
	return testutil.Tree(e.t, e.home, identity.MetadataDirName)
}

func (e *env) identity() *identity.InstalledIdentity {
	e.t.Helper()
	id, err := e.store.Load()
	require.NoError(e.t, err)
	return id
}

func (e *env) patchDirExists(patchID string) bool {
	e.t.Helper()
	exists, err := e.store.PatchDirExists(patchID)
	require.NoError(e.t, err)
	return exists
}

// applyCommitted applies p from its archive and commits it.
func (e *env) applyCommitted(p patch.Patch) *PatchingResult {
	e.t.Helper()
	result, err := e.tool.Apply(p, e.archive(p.ID), nil)
	require.NoError(e.t, err)
	require.NoError(e.t, result.Commit())
	return result
}

func (e *env) rollbackCommitted(patchID string, rollbackTo bool) *PatchingResult {
	e.t.Helper()
	result, err := e.tool.Rollback(patchID, nil, rollbackTo, false)
	require.NoError(e.t, err)
	require.NoError(e.t, result.Commit())
	return result
}

func miscPatch(id string, mods ...patch.ContentModification) patch.Patch {
	return patch.Patch{
		ID:            id,
		Type:          patch.TypeOneOff,
		Identity:      patch.Identity{Name: productName, Version: productVersion},
		Modifications: mods,
	}
}

func addMisc(path, content string) patch.ContentModification {
	return patch.ContentModification{Item: patch.NewMiscItem(path), Type: patch.ModificationAdd, TargetHash: sha(content)}
}

func modifyMisc(path, from, to string) patch.ContentModification {
	return patch.ContentModification{Item: patch.NewMiscItem(path), Type: patch.ModificationModify, ExpectedHash: sha(from), TargetHash: sha(to)}
}

func removeMisc(path, content string) patch.ContentModification {
	return patch.ContentModification{Item: patch.NewMiscItem(path), Type: patch.ModificationRemove, ExpectedHash: sha(content)}
}

// failExecuteOn makes the task for itemID fail in Execute.
func failExecuteOn(t *testing.T, itemID string) {
	t.Helper()
	original := newTaskFunc
	t.Cleanup(func() { newTaskFunc = original })
	newTaskFunc = func(mod patch.ContentModification, source loader.Loader) (task.Task, error) {
		inner, err := original(mod, source)
		if err != nil || mod.Item.ID() != itemID {
			return inner, err
		}
		return &failingTask{Task: inner}, nil
	}
}

type failingTask struct {
	task.Task
}

func (f *failingTask) Execute(*task.Context) error {
	return errDiskFull
}
