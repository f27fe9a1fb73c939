package history

import (
	"fmt"
	"os"
	"slices"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// RegisterDefaults wires the built-in validators: the record is readable, the
// backups the rollback needs exist with the recorded hashes, every element is
// in its target's history, and a recorded configuration backup exists.
func RegisterDefaults(it *Iterator, store *identity.Store, id *identity.InstalledIdentity) {
	it.AddStateHandler(ArtifactRecord, func(entry *Entry) error {
		return entry.RecordErr
	})
	it.AddStateHandler(ArtifactMisc, func(entry *Entry) error {
		if entry.Record == nil {
			return nil
		}
		rollback, err := entry.Record.RollbackPatch()
		if err != nil {
			return err
		}
		return checkBackups(store.BackupLoader(entry.PatchID, ""), rollback.Modifications, patch.ContentMisc)
	})
	for artifact, contentType := range map[Artifact]patch.ContentType{ArtifactModules: patch.ContentModule, ArtifactBundles: patch.ContentBundle} {
		it.AddStateHandler(artifact, func(entry *Entry) error {
			if entry.Record == nil {
				return nil
			}
			rollback, err := entry.Record.RollbackPatch()
			if err != nil {
				return err
			}
			for _, element := range rollback.Elements {
				if err := checkBackups(store.BackupLoader(entry.PatchID, element.ID), element.Modifications, contentType); err != nil {
					return err
				}
			}
			return nil
		})
	}
	it.AddStateHandler(ArtifactElements, func(entry *Entry) error {
		if entry.Record == nil {
			return nil
		}
		for _, element := range entry.Record.Elements {
			provider := patch.Provider{Name: element.Provider, Kind: element.Kind}
			target, ok := id.Target(provider)
			if !ok || !slices.Contains(target.Patches, element.ID) {
				return fmt.Errorf(messages.HistoryElementNotInTargetFmt, element.ID, provider.Key())
			}
		}
		return nil
	})
	it.AddStateHandler(ArtifactConfiguration, func(entry *Entry) error {
		if entry.Record == nil || !entry.Record.ConfigurationBackup {
			return nil
		}
		dir := store.ConfigurationDir(entry.PatchID)
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf(messages.HistoryConfigurationMissingFmt, dir)
		}
		return nil
	})
}

// checkBackups verifies that content restored by ADD and MODIFY entries is
// present in the backup with the hash the entry will verify against.
func checkBackups(backup loader.Loader, mods []patch.ContentModification, contentType patch.ContentType) error {
	for _, mod := range mods {
		if mod.Item.Type != contentType || mod.Type == patch.ModificationRemove || mod.Item.Directory {
			continue
		}
		path, err := backup.Resolve(mod.Item)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf(messages.HistoryBackupMissingFmt, mod.Item.ID(), path)
		}
		var got []byte
		if contentType == patch.ContentMisc {
			got, err = hashutil.Hash(path)
		} else {
			got, err = hashutil.HashTree(path)
		}
		if err != nil {
			return err
		}
		if !hashutil.Equal(got, mod.TargetHash) {
			return fmt.Errorf(messages.HistoryBackupHashMismatchFmt, mod.Item.ID(), path, hashutil.Format(got), hashutil.Format(mod.TargetHash))
		}
	}
	return nil
}
