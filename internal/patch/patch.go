package patch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conn-castle/patchtool/internal/messages"
)

// Type distinguishes one-off patches from cumulative ones.
type Type string

const (
	// TypeOneOff leaves the installation version unchanged.
	TypeOneOff Type = "one-off"
	// TypeCumulative moves the installation to ResultingVersion.
	TypeCumulative Type = "cumulative"
)

// ProviderKind is the kind of patchable target an element addresses.
type ProviderKind string

const (
	// ProviderLayer addresses a layer.
	ProviderLayer ProviderKind = "layer"
	// ProviderAddOn addresses an add-on.
	ProviderAddOn ProviderKind = "add-on"
)

// Identity names the installation a patch applies to.
type Identity struct {
	Name    string
	Version string
}

// Provider names the layer or add-on an element patches.
type Provider struct {
	Name string
	Kind ProviderKind
}

// Key is "<kind>:<name>".
func (p Provider) Key() string {
	return string(p.Kind) + ":" + p.Name
}

func (p Provider) String() string {
	return p.Key()
}

// Element is the part of a patch that targets one layer or add-on.
type Element struct {
	ID            string
	Provider      Provider
	Modifications []ContentModification
}

// Patch is an ordered set of modifications with an identity.
type Patch struct {
	ID               string
	Type             Type
	Identity         Identity
	ResultingVersion string
	Description      string
	// Modifications holds misc content of the identity.
	Modifications []ContentModification
	Elements      []Element
}

// RollbackID is the id of the patch that undoes patchID.
func RollbackID(patchID string) string {
	return patchID + ".rollback"
}

// ModificationCount is the number of modifications across the patch and its elements.
func (p Patch) ModificationCount() int {
	n := len(p.Modifications)
	for _, element := range p.Elements {
		n += len(element.Modifications)
	}
	return n
}

// Validate checks a patch before it is applied. Failures wrap ErrInvalidPatch.
func (p Patch) Validate() error {
	if err := p.validate(true); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	return nil
}

// ValidateRollback checks a generated rollback patch. Unlike forward patches
// its items may nest (a created directory and the files inside it).
func (p Patch) ValidateRollback() error {
	if err := p.validate(false); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	return nil
}

func (p Patch) validate(forward bool) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New(messages.PatchIDRequired)
	}
	if !validComponent(p.ID) {
		return fmt.Errorf(messages.PatchIDInvalidFmt, p.ID)
	}
	if strings.TrimSpace(p.Identity.Name) == "" {
		return errors.New(messages.PatchIdentityNameRequired)
	}
	if strings.TrimSpace(p.Identity.Version) == "" {
		return errors.New(messages.PatchIdentityVersionRequired)
	}
	switch p.Type {
	case TypeOneOff:
	case TypeCumulative:
		if forward && strings.TrimSpace(p.ResultingVersion) == "" {
			return errors.New(messages.PatchResultingVersionRequired)
		}
	default:
		return fmt.Errorf(messages.PatchTypeInvalidFmt, p.Type)
	}

	for _, mod := range p.Modifications {
		if mod.Item.Type != ContentMisc {
			return fmt.Errorf(messages.PatchTopLevelContentFmt, p.ID, mod.Item.Type, mod.Item.ID())
		}
	}
	if err := validateModifications(p.ID, p.Modifications, forward); err != nil {
		return err
	}

	seen := map[string]struct{}{p.ID: {}}
	for i, element := range p.Elements {
		if strings.TrimSpace(element.ID) == "" {
			return fmt.Errorf(messages.PatchElementIDRequiredFmt, i, p.ID)
		}
		if !validComponent(element.ID) {
			return fmt.Errorf(messages.PatchIDInvalidFmt, element.ID)
		}
		if _, dup := seen[element.ID]; dup {
			return fmt.Errorf(messages.PatchElementIDDuplicateFmt, element.ID, p.ID)
		}
		seen[element.ID] = struct{}{}
		if element.Provider.Name == "" || !validComponent(element.Provider.Name) ||
			(element.Provider.Kind != ProviderLayer && element.Provider.Kind != ProviderAddOn) {
			return fmt.Errorf(messages.PatchElementProviderFmt, element.ID)
		}
		for _, mod := range element.Modifications {
			if mod.Item.Type == ContentMisc {
				return fmt.Errorf(messages.PatchElementMiscFmt, element.ID, mod.Item.ID())
			}
		}
		if err := validateModifications(element.ID, element.Modifications, forward); err != nil {
			return err
		}
	}
	return nil
}

func validateModifications(owner string, mods []ContentModification, forward bool) error {
	ids := make(map[string]struct{}, len(mods))
	for _, mod := range mods {
		if err := mod.Validate(); err != nil {
			return err
		}
		key := mod.Item.Key()
		if _, dup := ids[key]; dup {
			return fmt.Errorf(messages.PatchDuplicateItemFmt, mod.Item.ID(), owner)
		}
		ids[key] = struct{}{}
	}
	if !forward {
		return nil
	}
	var misc []ContentItem
	for _, mod := range mods {
		if mod.Item.Type == ContentMisc {
			misc = append(misc, mod.Item)
		}
	}
	sort.Slice(misc, func(i, j int) bool { return misc[i].RelativePath() < misc[j].RelativePath() })
	for i := 1; i < len(misc); i++ {
		for j := 0; j < i; j++ {
			if misc[j].Contains(misc[i]) {
				return fmt.Errorf(messages.PatchOverlappingItemsFmt, misc[j].ID(), misc[i].ID(), owner)
			}
		}
	}
	return nil
}

func validComponent(s string) bool {
	return s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00") && strings.TrimSpace(s) == s && s != ""
}
