package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/task"
)

// Rollback undoes patchID, which must be the most recent patch unless
// rollbackTo is set, in which case every patch applied after it is undone in
// the same transaction. resetConfiguration restores the configuration copied
// aside when patchID was applied. A nil policy fails on every conflict.
func (pt *PatchTool) Rollback(patchID string, pol policy.Policy, rollbackTo, resetConfiguration bool) (*PatchingResult, error) {
	if pol == nil {
		pol = policy.Strict
	}
	// Rejected requests must not create the metadata directory. The check is
	// repeated under the lock.
	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	if _, err := unwindRange(id, patchID, rollbackTo); err != nil {
		return nil, err
	}
	lock, err := pt.lock()
	if err != nil {
		return nil, err
	}
	result, err := pt.rollback(patchID, pol, rollbackTo, resetConfiguration)
	if err != nil {
		pt.release(lock)
		return nil, err
	}
	result.lock = lock
	return result, nil
}

func (pt *PatchTool) rollback(patchID string, pol policy.Policy, rollbackTo, resetConfiguration bool) (*PatchingResult, error) {
	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	ids, err := unwindRange(id, patchID, rollbackTo)
	if err != nil {
		return nil, err
	}
	records := make([]*identity.Record, 0, len(ids))
	for _, unwound := range ids {
		record, err := pt.store.ReadRecord(unwound)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	updated, err := popRecords(id, records)
	if err != nil {
		return nil, err
	}
	newest, oldest := records[0], records[len(records)-1]
	updated.Version = oldest.PreviousVersion

	var restoreFrom string
	if resetConfiguration && len(pt.configurationDirs) > 0 {
		restoreFrom = pt.store.ConfigurationDir(oldest.PatchID)
		if _, err := os.Stat(restoreFrom); !oldest.ConfigurationBackup || err != nil {
			return nil, fmt.Errorf(messages.ToolConfigurationNotRecordedFmt, oldest.PatchID)
		}
	}

	units, err := pt.mergeRecords(records)
	if err != nil {
		return nil, err
	}
	rollbackID := patch.RollbackID(patchID)
	logger := logging.WithPatch(pt.logger, patchID, OperationRollback)
	staging := pt.store.NewStagingDir()
	layout := pt.store.Layout()
	tx := newTransaction(logger)
	for _, m := range units {
		target := layout.IdentityLoader()
		if m.provider != nil {
			target = layout.TargetLoader(*m.provider)
		}
		u := &unit{
			elementID: m.elementID,
			provider:  m.provider,
			key:       m.key,
			ctx:       task.NewRollbackContext(target, loader.ForElement(staging, m.key)),
		}
		if err := tx.add(u, m.entries()); err != nil {
			return nil, err
		}
	}
	if restoreFrom != "" {
		tx.configuration = pt.configuration(filepath.Join(staging, identity.ConfigurationDirName), restoreFrom)
	}
	if err := pt.run(tx, pol, rollbackID, staging); err != nil {
		return nil, err
	}

	redo := tx.rollbackPatch(patchID, patch.Patch{
		Type:        newest.Type,
		Identity:    patch.Identity{Name: updated.Name, Version: updated.Version},
		Description: newest.Description,
	})
	applied, preserved := tx.outcome()
	result := &PatchingResult{
		PatchID:   rollbackID,
		Operation: OperationRollback,
		Applied:   applied,
		Preserved: preserved,
		Rollback:  redo,
		tx:        tx,
		logger:    logger,
	}
	result.commit = func() error {
		if err := pt.store.Save(updated); err != nil {
			return err
		}
		for _, record := range records {
			pt.removeDir(pt.store.PatchDir(record.PatchID))
		}
		pt.removeDir(staging)
		logger.Info("rollback committed", "unwound", ids)
		return nil
	}
	result.discard = func() error {
		return pt.discard(tx, staging)
	}
	return result, nil
}

// unwindRange returns the ids a rollback of patchID unwinds, most recent first.
func unwindRange(id *identity.InstalledIdentity, patchID string, rollbackTo bool) ([]string, error) {
	idx := slices.Index(id.Patches, patchID)
	if idx < 0 {
		return nil, fmt.Errorf(messages.PatchNotAppliedFmt, patch.ErrNotApplied, patchID)
	}
	top, _ := id.Top()
	if top != patchID && !rollbackTo {
		return nil, &patch.HistoryInconsistencyError{PatchID: patchID, Target: id.Name, Top: top}
	}
	ids := slices.Clone(id.Patches[idx:])
	slices.Reverse(ids)
	return ids, nil
}

// popRecords removes the records' patch and element ids from a copy of id,
// enforcing that every target unwinds most recent first.
func popRecords(id *identity.InstalledIdentity, records []*identity.Record) (*identity.InstalledIdentity, error) {
	updated := id.Clone()
	for _, record := range records {
		if err := updated.PopPatch(record.PatchID); err != nil {
			top, _ := updated.Top()
			return nil, &patch.HistoryInconsistencyError{PatchID: record.PatchID, Target: id.Name, Top: top}
		}
		for i := len(record.Elements) - 1; i >= 0; i-- {
			element := record.Elements[i]
			provider := patch.Provider{Name: element.Provider, Kind: element.Kind}
			target, ok := updated.Target(provider)
			if !ok {
				return nil, &patch.HistoryInconsistencyError{PatchID: element.ID, Target: provider.Key()}
			}
			if err := target.PopElement(element.ID); err != nil {
				top, _ := target.Top()
				return nil, &patch.HistoryInconsistencyError{PatchID: element.ID, Target: provider.Key(), Top: top}
			}
		}
	}
	return updated, nil
}

// mergedUnit is the combined rollback of one target across unwound patches.
// Items are keyed by ContentItem.Key so a file and a directory marker at one
// path merge separately.
type mergedUnit struct {
	elementID string
	provider  *patch.Provider
	key       string
	order     []string
	items     map[string]*mergedItem
}

// mergedItem tracks the most recent and the oldest rollback entry of an item.
type mergedItem struct {
	newest patch.ContentModification
	oldest patch.ContentModification
	// source is the backup of the patch owning oldest.
	source loader.Loader
}

// mergeRecords combines the stored rollback patches of records (most recent
// first) per target and item.
func (pt *PatchTool) mergeRecords(records []*identity.Record) ([]*mergedUnit, error) {
	var units []*mergedUnit
	byKey := map[string]*mergedUnit{}
	add := func(key, elementID string, provider *patch.Provider, mods []patch.ContentModification, source loader.Loader) {
		m, ok := byKey[key]
		if !ok {
			m = &mergedUnit{elementID: elementID, provider: provider, key: key, items: map[string]*mergedItem{}}
			byKey[key] = m
			units = append(units, m)
		}
		for _, mod := range mods {
			itemKey := mod.Item.Key()
			if item, seen := m.items[itemKey]; seen {
				item.oldest = mod
				item.source = source
				continue
			}
			m.items[itemKey] = &mergedItem{newest: mod, oldest: mod, source: source}
			m.order = append(m.order, itemKey)
		}
	}
	for _, record := range records {
		rollback, err := record.RollbackPatch()
		if err != nil {
			return nil, err
		}
		add("", "", nil, rollback.Modifications, pt.store.BackupLoader(record.PatchID, ""))
		for _, element := range rollback.Elements {
			provider := element.Provider
			add(stagingKey(provider), element.ID, &provider, element.Modifications, pt.store.BackupLoader(record.PatchID, element.ID))
		}
	}
	return units, nil
}

// stagingKey names the backup directory of a target in a rollback.
func stagingKey(p patch.Provider) string {
	return string(p.Kind) + "-" + p.Name
}

// entries returns the combined modifications in first-seen order, except that
// a removal runs before any entry writing the same path.
func (m *mergedUnit) entries() []entry {
	out := make([]entry, 0, len(m.order))
	for _, itemKey := range m.order {
		item := m.items[itemKey]
		if mod, ok := item.combine(); ok {
			out = append(out, entry{mod: mod, source: item.source})
		}
	}
	for i := range out {
		if out[i].mod.Type == patch.ModificationRemove {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].mod.Type == patch.ModificationRemove && out[j].mod.Item.ID() == out[i].mod.Item.ID() {
				removal := out[j]
				copy(out[i+1:j+1], out[i:j])
				out[i] = removal
				break
			}
		}
	}
	return out
}

// combine turns the item's newest and oldest rollback entries into one
// modification from the current state to the state before the oldest patch.
// It reports false when the item neither exists now nor existed then.
func (item *mergedItem) combine() (patch.ContentModification, bool) {
	newest, oldest := item.newest, item.oldest
	existsNow := newest.Type != patch.ModificationAdd
	existed := oldest.Type != patch.ModificationRemove
	switch {
	case existsNow && existed:
		return patch.ContentModification{
			Item:         oldest.Item,
			Type:         patch.ModificationModify,
			TargetHash:   oldest.TargetHash,
			ExpectedHash: newest.ExpectedHash,
		}, true
	case existed:
		return patch.ContentModification{
			Item:         oldest.Item,
			Type:         patch.ModificationAdd,
			TargetHash:   oldest.TargetHash,
			ExpectedHash: hashutil.NoContent,
		}, true
	case existsNow:
		return patch.ContentModification{
			Item:         newest.Item,
			Type:         patch.ModificationRemove,
			TargetHash:   hashutil.NoContent,
			ExpectedHash: newest.ExpectedHash,
		}, true
	}
	return patch.ContentModification{}, false
}
