package loader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/patchtool/internal/patch"
)

func TestResolve(t *testing.T) {
	l := Loader{MiscRoot: "/home", ModuleRoot: "/home/modules/system/layers/base", BundleRoot: "/home/bundles/system/layers/base"}
	tests := []struct {
		name string
		item patch.ContentItem
		want string
	}{
		{"misc file", patch.NewMiscItem("bin/standalone.conf"), "/home/bin/standalone.conf"},
		{"misc root file", patch.NewMiscItem("README.txt"), "/home/README.txt"},
		{"misc dir", patch.NewMiscDirItem("docs/examples"), "/home/docs/examples"},
		{"module", patch.NewModuleItem("org.acme.core", ""), "/home/modules/system/layers/base/org/acme/core/main"},
		{"bundle slot", patch.NewBundleItem("org.acme.ui", "v2"), "/home/bundles/system/layers/base/org/acme/ui/v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Resolve(tt.item)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	l := Loader{MiscRoot: "/home"}
	_, err := l.Resolve(patch.NewModuleItem("org.acme", ""))
	require.Error(t, err, "missing module root")

	_, err = l.Resolve(patch.NewMiscItem("../outside"))
	require.Error(t, err)
}

func TestArchiveAndElementLayouts(t *testing.T) {
	archive := ForArchive("/p")
	assert.Equal(t, filepath.FromSlash("/p/misc"), archive.MiscRoot)
	assert.Equal(t, filepath.FromSlash("/p/modules"), archive.ModuleRoot)
	assert.Equal(t, filepath.FromSlash("/p/bundles"), archive.BundleRoot)

	element := ForElement("/p", "base-1")
	assert.Equal(t, filepath.FromSlash("/p/misc"), element.MiscRoot)
	assert.Equal(t, filepath.FromSlash("/p/base-1/modules"), element.ModuleRoot)
	assert.Equal(t, filepath.FromSlash("/p/base-1/bundles"), element.BundleRoot)
	assert.Equal(t, archive, ForElement("/p", ""))
	assert.Equal(t, "", element.Root("jar"))
}

func TestOpenAndStat(t *testing.T) {
	dir := t.TempDir()
	l := ForArchive(dir)
	item := patch.NewMiscItem("bin/a.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "misc", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "misc", "bin", "a.txt"), []byte("a"), 0o644))

	rc, err := l.Open(item)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a", string(data))

	_, exists, err := l.Stat(item)
	require.NoError(t, err)
	assert.True(t, exists)

	missing := patch.NewMiscItem("bin/b.txt")
	_, err = l.Open(missing)
	var notFound *patch.ContentNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, missing, notFound.Item)
	assert.True(t, errors.Is(err, patch.ErrContentNotFound))

	_, exists, err = l.Stat(missing)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = l.Require(missing)
	assert.True(t, errors.Is(err, patch.ErrContentNotFound))
}
