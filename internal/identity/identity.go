// Package identity holds the installed identity, its patchable targets, the
// installation layout and the on-disk patch history store.
package identity

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

const identitySchemaVersion = 1

// Target is a patchable layer or add-on with its own patch history.
type Target struct {
	Name string             `json:"name"`
	Kind patch.ProviderKind `json:"kind"`
	// Patches lists applied element ids, most recent last.
	Patches []string `json:"patches"`
}

// Provider returns the provider naming this target.
func (t *Target) Provider() patch.Provider {
	return patch.Provider{Name: t.Name, Kind: t.Kind}
}

// Top returns the most recently applied element id.
func (t *Target) Top() (string, bool) {
	if len(t.Patches) == 0 {
		return "", false
	}
	return t.Patches[len(t.Patches)-1], true
}

// InstalledIdentity is the installation's name, version and patch history.
type InstalledIdentity struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	// Patches lists applied patch ids, most recent last.
	Patches []string  `json:"patches"`
	Layers  []*Target `json:"layers"`
	AddOns  []*Target `json:"add_ons"`
}

// Top returns the most recently applied patch id.
func (id *InstalledIdentity) Top() (string, bool) {
	if len(id.Patches) == 0 {
		return "", false
	}
	return id.Patches[len(id.Patches)-1], true
}

// HasPatch reports whether patchID is in the identity's history.
func (id *InstalledIdentity) HasPatch(patchID string) bool {
	return slices.Contains(id.Patches, patchID)
}

// Target returns the layer or add-on named by p.
func (id *InstalledIdentity) Target(p patch.Provider) (*Target, bool) {
	targets := id.Layers
	if p.Kind == patch.ProviderAddOn {
		targets = id.AddOns
	}
	for _, target := range targets {
		if target.Name == p.Name {
			return target, true
		}
	}
	return nil, false
}

// Targets returns layers followed by add-ons.
func (id *InstalledIdentity) Targets() []*Target {
	out := make([]*Target, 0, len(id.Layers)+len(id.AddOns))
	out = append(out, id.Layers...)
	return append(out, id.AddOns...)
}

// HasElement reports whether any target's history holds elementID.
func (id *InstalledIdentity) HasElement(elementID string) bool {
	for _, target := range id.Targets() {
		if slices.Contains(target.Patches, elementID) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (id *InstalledIdentity) Clone() *InstalledIdentity {
	out := &InstalledIdentity{
		SchemaVersion: id.SchemaVersion,
		Name:          id.Name,
		Version:       id.Version,
		Patches:       slices.Clone(id.Patches),
	}
	for _, target := range id.Layers {
		out.Layers = append(out.Layers, &Target{Name: target.Name, Kind: target.Kind, Patches: slices.Clone(target.Patches)})
	}
	for _, target := range id.AddOns {
		out.AddOns = append(out.AddOns, &Target{Name: target.Name, Kind: target.Kind, Patches: slices.Clone(target.Patches)})
	}
	return out
}

// PopPatch removes patchID, which must be the most recent patch.
func (id *InstalledIdentity) PopPatch(patchID string) error {
	top, _ := id.Top()
	if top != patchID {
		return fmt.Errorf(messages.IdentityPopMismatchFmt, patchID, id.Name, top)
	}
	id.Patches = id.Patches[:len(id.Patches)-1]
	return nil
}

// PopElement removes elementID, which must be the target's most recent element.
func (t *Target) PopElement(elementID string) error {
	top, _ := t.Top()
	if top != elementID {
		return fmt.Errorf(messages.IdentityPopMismatchFmt, elementID, t.Provider().Key(), top)
	}
	t.Patches = t.Patches[:len(t.Patches)-1]
	return nil
}

func validateIdentity(id *InstalledIdentity) error {
	if id.SchemaVersion != identitySchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", id.SchemaVersion)
	}
	if strings.TrimSpace(id.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(id.Version) == "" {
		return fmt.Errorf("version is required")
	}
	seen := map[string]struct{}{}
	for _, patchID := range id.Patches {
		if _, dup := seen[patchID]; dup {
			return fmt.Errorf("patch %q appears more than once", patchID)
		}
		seen[patchID] = struct{}{}
	}
	for _, target := range id.Targets() {
		if target == nil || strings.TrimSpace(target.Name) == "" {
			return fmt.Errorf("target name is required")
		}
		for _, elementID := range target.Patches {
			if _, dup := seen[elementID]; dup {
				return fmt.Errorf("history id %q appears more than once", elementID)
			}
			seen[elementID] = struct{}{}
		}
	}
	for _, target := range id.Layers {
		if target.Kind != patch.ProviderLayer {
			return fmt.Errorf("layer %q has kind %q", target.Name, target.Kind)
		}
	}
	for _, target := range id.AddOns {
		if target.Kind != patch.ProviderAddOn {
			return fmt.Errorf("add-on %q has kind %q", target.Name, target.Kind)
		}
	}
	return nil
}

// Layout maps the installation's content to directories.
type Layout struct {
	Home string
}

// ModuleRoot returns the module root of a layer or add-on.
func (l Layout) ModuleRoot(p patch.Provider) string {
	return filepath.Join(l.Home, "modules", "system", providerDir(p.Kind), p.Name)
}

// BundleRoot returns the bundle root of a layer or add-on.
func (l Layout) BundleRoot(p patch.Provider) string {
	return filepath.Join(l.Home, "bundles", "system", providerDir(p.Kind), p.Name)
}

// IdentityLoader addresses misc content of the installation.
func (l Layout) IdentityLoader() loader.Loader {
	return loader.Loader{MiscRoot: l.Home}
}

// TargetLoader addresses the content of a layer or add-on.
func (l Layout) TargetLoader(p patch.Provider) loader.Loader {
	return loader.Loader{MiscRoot: l.Home, ModuleRoot: l.ModuleRoot(p), BundleRoot: l.BundleRoot(p)}
}

func providerDir(kind patch.ProviderKind) string {
	if kind == patch.ProviderAddOn {
		return "add-ons"
	}
	return "layers"
}
