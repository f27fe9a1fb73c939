package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/patch"
)

const recordSchemaVersion = 1

// ModificationRecord is the serialized form of a rollback modification.
type ModificationRecord struct {
	Item         string                 `json:"item"`
	Directory    bool                   `json:"directory,omitempty"`
	Type         patch.ModificationType `json:"type"`
	TargetHash   string                 `json:"target_hash,omitempty"`
	ExpectedHash string                 `json:"expected_hash,omitempty"`
}

// ElementRecord holds the rollback modifications of one element.
type ElementRecord struct {
	ID            string               `json:"id"`
	Provider      string               `json:"provider"`
	Kind          patch.ProviderKind   `json:"kind"`
	Modifications []ModificationRecord `json:"modifications"`
}

// Record is what a committed patch leaves behind so it can be rolled back by
// id alone: the rollback modifications and facts about the forward patch.
type Record struct {
	SchemaVersion int        `json:"schema_version"`
	PatchID       string     `json:"patch_id"`
	Type          patch.Type `json:"type"`
	Description   string     `json:"description,omitempty"`
	IdentityName  string     `json:"identity_name"`
	// PreviousVersion is the identity version before the patch was applied.
	PreviousVersion     string               `json:"previous_version"`
	ResultingVersion    string               `json:"resulting_version,omitempty"`
	AppliedAtUTC        string               `json:"applied_at_utc"`
	ConfigurationBackup bool                 `json:"configuration_backup"`
	Misc                []ModificationRecord `json:"misc"`
	Elements            []ElementRecord      `json:"elements"`
}

// NewRecord describes forward as applied at appliedAt with rollback as its inverse.
func NewRecord(forward, rollback patch.Patch, appliedAt time.Time, configurationBackup bool) *Record {
	record := &Record{
		SchemaVersion:       recordSchemaVersion,
		PatchID:             forward.ID,
		Type:                forward.Type,
		Description:         forward.Description,
		IdentityName:        forward.Identity.Name,
		PreviousVersion:     forward.Identity.Version,
		ResultingVersion:    forward.ResultingVersion,
		AppliedAtUTC:        appliedAt.UTC().Format(time.RFC3339),
		ConfigurationBackup: configurationBackup,
		Misc:                encodeModifications(rollback.Modifications),
		Elements:            []ElementRecord{},
	}
	for _, element := range rollback.Elements {
		record.Elements = append(record.Elements, ElementRecord{
			ID:            element.ID,
			Provider:      element.Provider.Name,
			Kind:          element.Provider.Kind,
			Modifications: encodeModifications(element.Modifications),
		})
	}
	return record
}

// AppliedAt parses AppliedAtUTC.
func (r *Record) AppliedAt() time.Time {
	t, _ := time.Parse(time.RFC3339, r.AppliedAtUTC)
	return t
}

// ElementIDs lists the element ids of the patch.
func (r *Record) ElementIDs() []string {
	ids := make([]string, 0, len(r.Elements))
	for _, element := range r.Elements {
		ids = append(ids, element.ID)
	}
	return ids
}

// RollbackPatch decodes the stored rollback patch.
func (r *Record) RollbackPatch() (patch.Patch, error) {
	out := patch.Patch{
		ID:          patch.RollbackID(r.PatchID),
		Type:        r.Type,
		Identity:    patch.Identity{Name: r.IdentityName, Version: r.PreviousVersion},
		Description: r.Description,
	}
	var err error
	if out.Modifications, err = decodeModifications(r.Misc); err != nil {
		return patch.Patch{}, err
	}
	for _, element := range r.Elements {
		mods, err := decodeModifications(element.Modifications)
		if err != nil {
			return patch.Patch{}, err
		}
		out.Elements = append(out.Elements, patch.Element{
			ID:            element.ID,
			Provider:      patch.Provider{Name: element.Provider, Kind: element.Kind},
			Modifications: mods,
		})
	}
	return out, nil
}

func validateRecord(r *Record) error {
	if r.SchemaVersion != recordSchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", r.SchemaVersion)
	}
	if strings.TrimSpace(r.PatchID) == "" {
		return fmt.Errorf("patch_id is required")
	}
	if _, err := time.Parse(time.RFC3339, r.AppliedAtUTC); err != nil {
		return fmt.Errorf("invalid applied_at_utc %q: %w", r.AppliedAtUTC, err)
	}
	rollback, err := r.RollbackPatch()
	if err != nil {
		return err
	}
	return rollback.ValidateRollback()
}

func encodeModifications(mods []patch.ContentModification) []ModificationRecord {
	out := make([]ModificationRecord, 0, len(mods))
	for _, mod := range mods {
		out = append(out, ModificationRecord{
			Item:         mod.Item.ID(),
			Directory:    mod.Item.Directory,
			Type:         mod.Type,
			TargetHash:   hashutil.Format(mod.TargetHash),
			ExpectedHash: hashutil.Format(mod.ExpectedHash),
		})
	}
	return out
}

func decodeModifications(records []ModificationRecord) ([]patch.ContentModification, error) {
	out := make([]patch.ContentModification, 0, len(records))
	for _, record := range records {
		item, err := patch.ParseItemID(record.Item)
		if err != nil {
			return nil, err
		}
		item.Directory = record.Directory
		modType, err := patch.ParseModificationType(string(record.Type))
		if err != nil {
			return nil, err
		}
		target, err := hashutil.Parse(record.TargetHash)
		if err != nil {
			return nil, fmt.Errorf("target_hash of %s: %w", record.Item, err)
		}
		expected, err := hashutil.Parse(record.ExpectedHash)
		if err != nil {
			return nil, fmt.Errorf("expected_hash of %s: %w", record.Item, err)
		}
		out = append(out, patch.ContentModification{Item: item, Type: modType, TargetHash: target, ExpectedHash: expected})
	}
	return out, nil
}
