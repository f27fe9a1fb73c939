package tool

import (
	"time"

	"github.com/conn-castle/patchtool/internal/history"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/patch"
)

// HistoryEntry describes one applied patch.
type HistoryEntry struct {
	PatchID          string           `json:"patch_id" yaml:"patch_id"`
	Type             patch.Type       `json:"type,omitempty" yaml:"type,omitempty"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	AppliedAt        time.Time        `json:"applied_at" yaml:"applied_at"`
	PreviousVersion  string           `json:"previous_version,omitempty" yaml:"previous_version,omitempty"`
	ResultingVersion string           `json:"resulting_version,omitempty" yaml:"resulting_version,omitempty"`
	Elements         []HistoryElement `json:"elements,omitempty" yaml:"elements,omitempty"`
	// Error is set when the history record could not be read.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// HistoryElement is one element of an applied patch.
type HistoryElement struct {
	ID     string `json:"id" yaml:"id"`
	Target string `json:"target" yaml:"target"`
}

// History returns the installed identity and its applied patches, most
// recent first. It takes no lock and validates nothing.
func (pt *PatchTool) History() (*identity.InstalledIdentity, []HistoryEntry, error) {
	id, err := pt.store.Load()
	if err != nil {
		return nil, nil, err
	}
	it := history.New(id, pt.store)
	var entries []HistoryEntry
	for it.HasNext() {
		entry, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, newHistoryEntry(entry))
	}
	return id, entries, nil
}

func newHistoryEntry(entry *history.Entry) HistoryEntry {
	out := HistoryEntry{PatchID: entry.PatchID}
	if entry.RecordErr != nil {
		out.Error = entry.RecordErr.Error()
		return out
	}
	record := entry.Record
	out.Type = record.Type
	out.Description = record.Description
	out.AppliedAt = record.AppliedAt()
	out.PreviousVersion = record.PreviousVersion
	out.ResultingVersion = record.ResultingVersion
	for _, element := range record.Elements {
		provider := patch.Provider{Name: element.Provider, Kind: element.Kind}
		out.Elements = append(out.Elements, HistoryElement{ID: element.ID, Target: provider.Key()})
	}
	return out
}

// Verification is the validation outcome of one applied patch.
type Verification struct {
	PatchID  string
	Problems []*history.ValidationError
}

// OK reports whether the patch can still be rolled back.
func (v Verification) OK() bool {
	return len(v.Problems) == 0
}

// Verify validates every applied patch with the built-in history checks,
// most recent first. It takes no lock.
func (pt *PatchTool) Verify() ([]Verification, error) {
	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	it := history.New(id, pt.store)
	history.RegisterDefaults(it, pt.store, id)
	collector := history.Collect()
	var out []Verification
	for it.HasNext() {
		entry, err := it.NextWith(collector.Handle)
		if err != nil {
			return nil, err
		}
		out = append(out, Verification{PatchID: entry.PatchID, Problems: collector.For(entry.PatchID)})
	}
	return out, nil
}
