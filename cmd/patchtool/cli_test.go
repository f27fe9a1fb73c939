package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/prompt"
	"github.com/conn-castle/patchtool/internal/testutil"
)

const archiveMetadata = `
id = "p1"
type = "one-off"
description = "tune app"

[identity]
name = "product"
version = "1.0.0"

[[modification]]
type = "modify"
content = "misc"
path = "conf/app.conf"
expected-hash = "%s"
hash = "%s"
`

func sha(s string) string {
	return hashutil.Format(testutil.SHA256(s))
}

type cli struct {
	t       *testing.T
	home    string
	archive string
}

// newCLI returns an initialized installation with conf/app.conf at v1 and a
// p1 archive that moves it to v2.
func newCLI(t *testing.T) *cli {
	t.Helper()
	root := t.TempDir()
	c := &cli{t: t, home: filepath.Join(root, "home"), archive: filepath.Join(root, "p1")}
	require.NoError(t, os.MkdirAll(c.home, 0o755))
	testutil.WriteFile(t, filepath.Join(c.home, "conf", "app.conf"), "v1")
	testutil.WriteFile(t, filepath.Join(c.archive, "misc", "conf", "app.conf"), "v2")
	testutil.WriteFile(t, filepath.Join(c.archive, patch.MetadataFile), fmt.Sprintf(archiveMetadata, sha("v1"), sha("v2")))

	for _, kv := range [][2]string{
		{"installation.name", "product"},
		{"installation.version", "1.0.0"},
		{"installation.layers", "base"},
	} {
		_, err := c.run("", "config", "set", kv[0], kv[1])
		require.NoError(t, err)
	}
	withTerminal(t, false)
	return c
}

func withTerminal(t *testing.T, interactive bool) {
	t.Helper()
	original := isTerminal
	t.Cleanup(func() { isTerminal = original })
	isTerminal = func() bool { return interactive }
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--home", c.home}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) appConf() string {
	return testutil.ReadFile(c.t, filepath.Join(c.home, "conf", "app.conf"))
}

func TestApplyHistoryVerifyRollback(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("", "apply", c.archive, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "modify misc/conf/app.conf")
	assert.Contains(t, out, "Patch p1 applied (1 modification(s), 0 preserved)")
	assert.Equal(t, "v2", c.appConf())

	out, err = c.run("", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "product 1.0.0")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "tune app")

	out, err = c.run("", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "History is consistent.")

	out, err = c.run("", "rollback", "p1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back p1")
	assert.Equal(t, "v1", c.appConf())

	out, err = c.run("", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No patches applied.")
}

func TestHistoryStructuredFormats(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "apply", c.archive, "--yes")
	require.NoError(t, err)

	out, err := c.run("", "history", "--format", "json")
	require.NoError(t, err)
	var view historyView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "product", view.Name)
	require.Len(t, view.Patches, 1)
	assert.Equal(t, "p1", view.Patches[0].PatchID)

	out, err = c.run("", "history", "--format", "yaml")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "product", doc["name"])
	patches, ok := doc["patches"].([]any)
	require.True(t, ok)
	assert.Len(t, patches, 1)

	_, err = c.run("", "history", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestApplyRequiresTerminalWithoutYes(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "apply", c.archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Equal(t, "v1", c.appConf())
}

func TestApplyDeclinedConfirmationRestores(t *testing.T) {
	c := newCLI(t)
	withTerminal(t, true)

	out, err := c.run("n\n", "apply", c.archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Commit patch p1? [Y/n]")
	assert.Contains(t, out, "was not committed")
	assert.Equal(t, "v1", c.appConf())

	out, err = c.run("", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No patches applied.")
}

func TestApplyDryRun(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("", "apply", c.archive, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: patch p1 applied cleanly")
	assert.Equal(t, "v1", c.appConf())
}

func TestApplyConflictFailsUnlessOverridden(t *testing.T) {
	c := newCLI(t)
	testutil.WriteFile(t, filepath.Join(c.home, "conf", "app.conf"), "tuned")

	_, err := c.run("", "apply", c.archive, "--yes")
	require.Error(t, err)
	var conflict *patch.ContentConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, "tuned", c.appConf())

	out, err := c.run("", "apply", c.archive, "--yes", "--preserve", "conf/app.conf")
	require.NoError(t, err)
	assert.Contains(t, out, "(preserved)")
	assert.Equal(t, "tuned", c.appConf())
}

func TestApplyInteractiveAsksWithDiff(t *testing.T) {
	c := newCLI(t)
	testutil.WriteFile(t, filepath.Join(c.home, "conf", "app.conf"), "tuned\n")
	withTerminal(t, true)
	ui := &scriptedUI{answer: "override"}
	original := newPromptUI
	t.Cleanup(func() { newPromptUI = original })
	newPromptUI = func() prompt.UI { return ui }

	_, err := c.run("y\n", "apply", c.archive, "--interactive")
	require.NoError(t, err)
	require.Len(t, ui.descriptions, 1)
	assert.Contains(t, ui.descriptions[0], "-tuned")
	assert.Contains(t, ui.descriptions[0], "+v2")
	assert.Equal(t, "v2", c.appConf())
}

func TestApplyInteractiveRequiresTerminal(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "apply", c.archive, "--interactive", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}

type scriptedUI struct {
	answer       string
	descriptions []string
}

func (s *scriptedUI) Select(_, description string, _ []string, current *string) error {
	s.descriptions = append(s.descriptions, description)
	*current = s.answer
	return nil
}

func TestPlanReportsConflict(t *testing.T) {
	c := newCLI(t)
	testutil.WriteFile(t, filepath.Join(c.home, "conf", "app.conf"), "tuned\n")

	out, err := c.run("", "plan", c.archive, "--diff")
	var silent *SilentExitError
	require.True(t, errors.As(err, &silent))
	assert.Equal(t, planExitCode, silent.Code)
	assert.Contains(t, out, "Plan for patch p1")
	assert.Contains(t, out, "misc/conf/app.conf")
	assert.Contains(t, out, "Diff for misc/conf/app.conf")
	assert.Contains(t, out, "would fail")

	out, err = c.run("", "plan", c.archive, "--json", "--override-all")
	require.NoError(t, err)
	var view planView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.WouldFail)
	require.Len(t, view.Tasks, 1)
	assert.True(t, view.Tasks[0].Conflict)
	assert.Equal(t, "override", view.Tasks[0].Decision)
	assert.Equal(t, "misc-modify", view.Tasks[0].Kind)
	assert.Equal(t, "tuned\n", c.appConf())
}

func TestVerifyReportsTamperedBackup(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "apply", c.archive, "--yes")
	require.NoError(t, err)
	testutil.WriteFile(t, filepath.Join(c.home, ".installation", "patches", "p1", "misc", "conf", "app.conf"), "tampered")

	out, err := c.run("", "verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 patch(es) failed verification")
	assert.Contains(t, out, "[FAIL]")
}

func TestRollbackDryRunKeepsPatch(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "apply", c.archive, "--yes")
	require.NoError(t, err)

	out, err := c.run("", "rollback", "p1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: rollback of p1")
	assert.Equal(t, "v2", c.appConf())

	_, err = c.run("", "rollback", "unknown", "--yes")
	assert.ErrorIs(t, err, patch.ErrNotApplied)
}

func TestUninitializedInstallation(t *testing.T) {
	home := t.TempDir()
	c := &cli{t: t, home: home}
	withTerminal(t, false)

	_, err := c.run("", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config set installation.name")
}

func TestConfigSetAndShow(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("", "config", "set", "policy.preserve", "conf/app.conf, bin/run.sh")
	require.NoError(t, err)
	assert.Contains(t, out, "Set policy.preserve")

	out, err = c.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "conf/app.conf")
	assert.Contains(t, out, "bin/run.sh")
	assert.Contains(t, out, "product")

	_, err = c.run("", "config", "set", "nope", "1")
	require.Error(t, err)
}

func TestHomeFromEnvironment(t *testing.T) {
	c := newCLI(t)
	t.Setenv("PATCHTOOL_HOME", c.home)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"history"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "product 1.0.0")
}

func TestHomeFromWorkingDirectory(t *testing.T) {
	c := newCLI(t)
	t.Setenv("PATCHTOOL_HOME", "")

	testutil.WithWorkingDir(t, c.home, func() {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"history"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "product 1.0.0")
	})
}

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
		wantErr    bool
	}{
		{"default yes", "\n", true, true, false},
		{"default no", "\n", false, false, false},
		{"yes", "y\n", false, true, false},
		{"no", "no\n", true, false, false},
		{"retry", "maybe\nyes\n", false, true, false},
		{"eof", "", true, false, false},
		{"invalid at eof", "maybe", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptYesNo(strings.NewReader(tt.input), &out, "Continue?", tt.defaultYes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
