package patch

import (
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/patchtool/internal/hashutil"
)

func h(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func validPatch() Patch {
	return Patch{
		ID:       "patch-1",
		Type:     TypeOneOff,
		Identity: Identity{Name: "product", Version: "1.0"},
		Modifications: []ContentModification{
			{Item: NewMiscItem("bin/a.txt"), Type: ModificationModify, ExpectedHash: h("a1"), TargetHash: h("a2")},
			{Item: NewMiscItem("bin/b.txt"), Type: ModificationAdd, TargetHash: h("b")},
		},
		Elements: []Element{{
			ID:       "base-patch-1",
			Provider: Provider{Name: "base", Kind: ProviderLayer},
			Modifications: []ContentModification{
				{Item: NewModuleItem("org.acme.core", ""), Type: ModificationRemove, ExpectedHash: h("m")},
			},
		}},
	}
}

func TestPatchValidate(t *testing.T) {
	require.NoError(t, validPatch().Validate())
	assert.Equal(t, 3, validPatch().ModificationCount())

	tests := []struct {
		name   string
		mutate func(*Patch)
		want   string
	}{
		{"missing id", func(p *Patch) { p.ID = "" }, "patch id is required"},
		{"id with separator", func(p *Patch) { p.ID = "a/b" }, "single path component"},
		{"missing identity", func(p *Patch) { p.Identity.Name = "" }, "identity name"},
		{"cumulative without version", func(p *Patch) { p.Type = TypeCumulative }, "resulting-version"},
		{"bad type", func(p *Patch) { p.Type = "hotfix" }, "invalid patch type"},
		{"module at top level", func(p *Patch) {
			p.Modifications = append(p.Modifications, ContentModification{Item: NewModuleItem("x", ""), Type: ModificationAdd, TargetHash: h("x")})
		}, "must be declared in a layer"},
		{"misc in element", func(p *Patch) {
			p.Elements[0].Modifications = append(p.Elements[0].Modifications, ContentModification{Item: NewMiscItem("x"), Type: ModificationAdd, TargetHash: h("x")})
		}, "belongs to the patch"},
		{"duplicate element", func(p *Patch) { p.Elements = append(p.Elements, p.Elements[0]) }, "duplicate element id"},
		{"element id equals patch id", func(p *Patch) { p.Elements[0].ID = p.ID }, "duplicate element id"},
		{"bad provider", func(p *Patch) { p.Elements[0].Provider.Kind = "plugin" }, "exactly one layer or add-on"},
		{"duplicate item", func(p *Patch) { p.Modifications = append(p.Modifications, p.Modifications[0]) }, "duplicate modification"},
		{"overlap", func(p *Patch) {
			p.Modifications = append(p.Modifications, ContentModification{Item: NewMiscDirItem("bin"), Type: ModificationRemove})
		}, "overlap"},
		{"add with expected hash", func(p *Patch) { p.Modifications[1].ExpectedHash = h("x") }, "must not declare an expected hash"},
		{"modify without expected hash", func(p *Patch) { p.Modifications[0].ExpectedHash = nil }, "requires an expected hash"},
		{"add without target hash", func(p *Patch) { p.Modifications[1].TargetHash = nil }, "requires a target hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatch()
			p.Elements = append([]Element(nil), p.Elements...)
			p.Elements[0].Modifications = append([]ContentModification(nil), p.Elements[0].Modifications...)
			p.Modifications = append([]ContentModification(nil), p.Modifications...)
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPatch))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRollbackAllowsNestedItems(t *testing.T) {
	p := Patch{
		ID:       RollbackID("patch-1"),
		Type:     TypeCumulative,
		Identity: Identity{Name: "product", Version: "1.0"},
		Modifications: []ContentModification{
			{Item: NewMiscItem("new/a.txt"), Type: ModificationRemove, ExpectedHash: h("a")},
			{Item: NewMiscDirItem("new"), Type: ModificationRemove},
		},
	}
	require.NoError(t, p.ValidateRollback())
	require.Error(t, p.Validate())
	assert.Equal(t, "patch-1.rollback", p.ID)
}

func TestValidateRollbackAllowsTypeChangeAtOnePath(t *testing.T) {
	p := Patch{
		ID:       RollbackID("patch-1"),
		Type:     TypeOneOff,
		Identity: Identity{Name: "product", Version: "1.0"},
		Modifications: []ContentModification{
			{Item: NewMiscDirItem("conf"), Type: ModificationRemove},
			{Item: NewMiscItem("conf"), Type: ModificationAdd, TargetHash: h("old")},
		},
	}
	require.NoError(t, p.ValidateRollback())

	p.Modifications = append(p.Modifications, p.Modifications[1])
	err := p.ValidateRollback()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate modification for misc/conf")
}

type fakeState map[ContentItem][]byte

func (f fakeState) CurrentHash(item ContentItem) ([]byte, bool, error) {
	hash, ok := f[item]
	return hash, ok, nil
}

func TestRequiresCondition(t *testing.T) {
	state := fakeState{NewMiscItem("bin/a.txt"): h("a")}

	ok, err := RequiresCondition{Item: NewMiscItem("bin/a.txt")}.Applies(state)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = RequiresCondition{Item: NewMiscItem("bin/a.txt"), Hash: h("other")}.Applies(state)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = RequiresCondition{Item: NewMiscItem("bin/missing")}.Applies(state)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, strings.HasPrefix(RequiresCondition{Item: NewMiscItem("x"), Hash: h("x")}.String(), "requires misc/x@"))
}

func TestResultHash(t *testing.T) {
	add := ContentModification{Type: ModificationAdd, TargetHash: h("a")}
	assert.Equal(t, h("a"), add.ResultHash())
	remove := ContentModification{Type: ModificationRemove, TargetHash: h("a")}
	assert.True(t, hashutil.IsNoContent(remove.ResultHash()))
}

func TestErrorTaxonomy(t *testing.T) {
	notFound := &ContentNotFoundError{Item: NewMiscItem("a"), Path: "/src/misc/a"}
	assert.True(t, errors.Is(notFound, ErrContentNotFound))
	assert.Contains(t, notFound.Error(), "/src/misc/a")

	conflict := &ContentConflictError{Conflicts: []Conflict{
		{Item: NewMiscItem("a"), Path: "/home/a", Expected: h("1"), Actual: h("2")},
		{Item: NewMiscItem("b"), Path: "/home/b"},
	}}
	assert.True(t, errors.Is(conflict, ErrContentConflict))
	assert.Contains(t, conflict.Error(), "/home/a")
	assert.Contains(t, conflict.Error(), "1 more")

	cause := errors.New("disk full")
	patching := &PatchingError{Op: "execute", Path: "/home/a", Err: cause}
	assert.True(t, errors.Is(patching, ErrPatching))
	assert.True(t, errors.Is(patching, cause))

	history := &HistoryInconsistencyError{PatchID: "p1", Target: "product", Top: "p2"}
	assert.True(t, errors.Is(history, ErrHistoryInconsistency))
	assert.Contains(t, history.Error(), "p2")
}
