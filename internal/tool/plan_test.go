package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/task"
)

const planMetadata = `
id = "p1"
type = "one-off"

[identity]
name = "product"
version = "1.0.0"

[[modification]]
type = "modify"
content = "misc"
path = "conf/app.conf"
expected-hash = "%s"
hash = "%s"

[[modification]]
type = "add"
content = "misc"
path = "docs/readme.txt"
hash = "%s"
`

func writePlanArchive(e *env) {
	e.writeArchive("p1", "misc/conf/app.conf", "v2")
	e.writeArchive("p1", "misc/docs/readme.txt", "readme")
	metadata := fmt.Sprintf(planMetadata, hashutil.Format(sha("v1")), hashutil.Format(sha("v2")), hashutil.Format(sha("readme")))
	e.writeArchive("p1", patch.MetadataFile, metadata)
}

func TestPlanReportsConflictsWithoutChanges(t *testing.T) {
	e := newEnv(t)
	e.writeHome("conf/app.conf", "tuned")
	writePlanArchive(e)
	before := e.tree()

	plan, err := e.tool.Plan(e.archive("p1"), nil)
	require.NoError(t, err)

	assert.Equal(t, "p1", plan.PatchID)
	assert.True(t, plan.WouldFail())
	require.Len(t, plan.Refused, 1)
	require.Len(t, plan.Tasks, 2)
	conflicting := plan.Tasks[0]
	assert.Equal(t, task.KindMiscModify, conflicting.Kind)
	assert.True(t, conflicting.Conflict)
	assert.Equal(t, policy.Fail, conflicting.Decision)
	assert.Equal(t, filepath.Join(e.home, "conf", "app.conf"), conflicting.Path)
	assert.Equal(t, filepath.Join(e.archive("p1"), "misc", "conf", "app.conf"), conflicting.SourcePath)
	assert.Equal(t, sha("tuned"), conflicting.Actual)
	assert.False(t, plan.Tasks[1].Conflict)

	assert.Equal(t, before, e.tree())
	assert.False(t, e.patchDirExists("p1"))
	entries, err := os.ReadDir(filepath.Join(e.home, identity.MetadataDirName, "staging"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestPlanWithOverride(t *testing.T) {
	e := newEnv(t)
	e.writeHome("conf/app.conf", "tuned")
	writePlanArchive(e)

	plan, err := e.tool.Plan(e.archive("p1"), policy.FromOptions(policy.Options{OverrideAll: true}))
	require.NoError(t, err)
	assert.False(t, plan.WouldFail())
	assert.Equal(t, policy.Override, plan.Tasks[0].Decision)

	result, err := e.tool.ApplyPatch(e.archive("p1"), policy.FromOptions(policy.Options{OverrideAll: true}))
	require.NoError(t, err)
	require.NoError(t, result.Commit())
	assert.Equal(t, "v2", e.readHome("conf/app.conf"))
	assert.Equal(t, "readme", e.readHome("docs/readme.txt"))
}
