package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
)

// MetadataFile is the name of the metadata file at the root of a patch archive.
const MetadataFile = "patch.toml"

type metadataFile struct {
	ID            string            `toml:"id"`
	Type          string            `toml:"type"`
	Description   string            `toml:"description"`
	Identity      metadataIdentity  `toml:"identity"`
	Modifications []metadataChange  `toml:"modification"`
	Elements      []metadataElement `toml:"element"`
}

type metadataIdentity struct {
	Name             string `toml:"name"`
	Version          string `toml:"version"`
	ResultingVersion string `toml:"resulting-version"`
}

type metadataElement struct {
	ID            string           `toml:"id"`
	Layer         string           `toml:"layer"`
	AddOn         string           `toml:"add-on"`
	Modifications []metadataChange `toml:"modification"`
}

type metadataChange struct {
	Type         string `toml:"type"`
	Content      string `toml:"content"`
	Path         string `toml:"path"`
	Name         string `toml:"name"`
	Slot         string `toml:"slot"`
	Directory    bool   `toml:"directory"`
	Hash         string `toml:"hash"`
	ExpectedHash string `toml:"expected-hash"`
	Requires     string `toml:"requires"`
	RequiresHash string `toml:"requires-hash"`
}

// LoadArchive reads and validates <dir>/patch.toml.
func LoadArchive(dir string) (Patch, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf(messages.PatchMetadataReadFmt, path, err)
	}
	return ParseMetadata(data, path)
}

// ParseMetadata parses patch metadata TOML. source is used in error messages.
func ParseMetadata(data []byte, source string) (Patch, error) {
	var file metadataFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Patch{}, fmt.Errorf(messages.PatchMetadataUnknownKeysFmt, source, err)
		}
		return Patch{}, fmt.Errorf(messages.PatchMetadataInvalidFmt, source, err)
	}

	p := Patch{
		ID:          strings.TrimSpace(file.ID),
		Type:        Type(strings.ToLower(strings.TrimSpace(file.Type))),
		Description: file.Description,
		Identity: Identity{
			Name:    strings.TrimSpace(file.Identity.Name),
			Version: strings.TrimSpace(file.Identity.Version),
		},
		ResultingVersion: strings.TrimSpace(file.Identity.ResultingVersion),
	}
	if p.Type == "" {
		p.Type = TypeOneOff
	}
	var err error
	if p.Modifications, err = convertChanges(file.Modifications); err != nil {
		return Patch{}, fmt.Errorf(messages.PatchMetadataInvalidFmt, source, err)
	}
	for _, entry := range file.Elements {
		element := Element{ID: strings.TrimSpace(entry.ID)}
		layer, addOn := strings.TrimSpace(entry.Layer), strings.TrimSpace(entry.AddOn)
		switch {
		case layer != "" && addOn == "":
			element.Provider = Provider{Name: layer, Kind: ProviderLayer}
		case addOn != "" && layer == "":
			element.Provider = Provider{Name: addOn, Kind: ProviderAddOn}
		default:
			return Patch{}, fmt.Errorf(messages.PatchMetadataInvalidFmt, source, fmt.Errorf(messages.PatchElementProviderFmt, element.ID))
		}
		if element.Modifications, err = convertChanges(entry.Modifications); err != nil {
			return Patch{}, fmt.Errorf(messages.PatchMetadataInvalidFmt, source, err)
		}
		p.Elements = append(p.Elements, element)
	}
	if err := p.Validate(); err != nil {
		return Patch{}, fmt.Errorf(messages.PatchMetadataInvalidFmt, source, err)
	}
	return p, nil
}

func convertChanges(entries []metadataChange) ([]ContentModification, error) {
	mods := make([]ContentModification, 0, len(entries))
	for _, entry := range entries {
		mod, err := convertChange(entry)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func convertChange(entry metadataChange) (ContentModification, error) {
	modType, err := ParseModificationType(entry.Type)
	if err != nil {
		return ContentModification{}, err
	}
	contentType, err := ParseContentType(entry.Content)
	if err != nil {
		return ContentModification{}, err
	}
	var item ContentItem
	switch contentType {
	case ContentMisc:
		item = NewMiscItem(entry.Path)
		item.Directory = entry.Directory
	case ContentModule:
		item = NewModuleItem(strings.TrimSpace(entry.Name), strings.TrimSpace(entry.Slot))
	case ContentBundle:
		item = NewBundleItem(strings.TrimSpace(entry.Name), strings.TrimSpace(entry.Slot))
	}
	mod := ContentModification{Item: item, Type: modType}
	if mod.TargetHash, err = hashutil.Parse(entry.Hash); err != nil {
		return ContentModification{}, fmt.Errorf(messages.PatchHashInvalidFmt, entry.Hash, item.ID(), err)
	}
	if mod.ExpectedHash, err = hashutil.Parse(entry.ExpectedHash); err != nil {
		return ContentModification{}, fmt.Errorf(messages.PatchHashInvalidFmt, entry.ExpectedHash, item.ID(), err)
	}
	if modType == ModificationRemove {
		mod.TargetHash = hashutil.NoContent
	}
	if requires := strings.TrimSpace(entry.Requires); requires != "" {
		required, err := ParseItemID(requires)
		if err != nil {
			return ContentModification{}, err
		}
		hash, err := hashutil.Parse(entry.RequiresHash)
		if err != nil {
			return ContentModification{}, fmt.Errorf(messages.PatchHashInvalidFmt, entry.RequiresHash, requires, err)
		}
		mod.Condition = RequiresCondition{Item: required, Hash: hash}
	}
	return mod, nil
}
