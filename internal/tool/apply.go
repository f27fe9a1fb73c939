package tool

import (
	"fmt"
	"log/slog"

	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/task"
)

// ApplyPatch loads the patch archive in archiveDir and applies it.
func (pt *PatchTool) ApplyPatch(archiveDir string, pol policy.Policy) (*PatchingResult, error) {
	p, err := patch.LoadArchive(archiveDir)
	if err != nil {
		return nil, err
	}
	return pt.Apply(p, archiveDir, pol)
}

// Apply prepares and executes p, reading new content from contentRoot
// (laid out like a patch archive). A nil policy fails on every conflict.
func (pt *PatchTool) Apply(p patch.Patch, contentRoot string, pol policy.Policy) (*PatchingResult, error) {
	if pol == nil {
		pol = policy.Strict
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	if err := checkApplicable(id, p); err != nil {
		return nil, err
	}
	lock, err := pt.lock()
	if err != nil {
		return nil, err
	}
	result, err := pt.apply(p, contentRoot, pol)
	if err != nil {
		pt.release(lock)
		return nil, err
	}
	result.lock = lock
	return result, nil
}

func (pt *PatchTool) apply(p patch.Patch, contentRoot string, pol policy.Policy) (*PatchingResult, error) {
	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	if err := checkApplicable(id, p); err != nil {
		return nil, err
	}
	patchDir := pt.store.PatchDir(p.ID)
	leftover, err := pt.store.PatchDirExists(p.ID)
	if err != nil {
		return nil, err
	}
	if leftover {
		return nil, fmt.Errorf(messages.StoreLeftoverBackupFmt, patchDir, p.ID)
	}

	logger := logging.WithPatch(pt.logger, p.ID, OperationApply)
	tx, err := buildApply(pt.store.Layout(), p, contentRoot, patchDir, logger)
	if err != nil {
		return nil, err
	}
	tx.configuration = pt.configuration(pt.store.ConfigurationDir(p.ID), "")
	if err := pt.run(tx, pol, p.ID, patchDir); err != nil {
		return nil, err
	}

	rollback := tx.rollbackPatch(patch.RollbackID(p.ID), p)
	applied, preserved := tx.outcome()
	configurationBackup := tx.configuration != nil
	result := &PatchingResult{
		PatchID:   p.ID,
		Operation: OperationApply,
		Applied:   applied,
		Preserved: preserved,
		Rollback:  rollback,
		tx:        tx,
		logger:    logger,
	}
	result.commit = func() error {
		return pt.commitApply(id, p, rollback, configurationBackup)
	}
	result.discard = func() error {
		return pt.discard(tx, patchDir)
	}
	return result, nil
}

// checkApplicable rejects patches for another installation, patches whose
// ids are already in the history and elements naming unknown targets.
func checkApplicable(id *identity.InstalledIdentity, p patch.Patch) error {
	if p.Identity.Name != id.Name || p.Identity.Version != id.Version {
		return fmt.Errorf(messages.PatchIdentityMismatchFmt, patch.ErrIdentityMismatch, p.ID, p.Identity.Name, p.Identity.Version, id.Name, id.Version)
	}
	if id.HasPatch(p.ID) || id.HasElement(p.ID) {
		return fmt.Errorf(messages.PatchAlreadyAppliedFmt, patch.ErrAlreadyApplied, p.ID)
	}
	for _, element := range p.Elements {
		if _, ok := id.Target(element.Provider); !ok {
			return fmt.Errorf(messages.PatchUnknownTargetFmt, patch.ErrUnknownTarget, element.Provider.Key(), element.ID)
		}
		if id.HasPatch(element.ID) || id.HasElement(element.ID) {
			return fmt.Errorf(messages.PatchAlreadyAppliedFmt, patch.ErrAlreadyApplied, element.ID)
		}
	}
	return nil
}

// buildApply creates one unit for the patch's misc content and one per
// element, backing up into backupRoot.
func buildApply(layout identity.Layout, p patch.Patch, contentRoot, backupRoot string, logger *slog.Logger) (*transaction, error) {
	tx := newTransaction(logger)
	misc := &unit{
		ctx: task.NewContext(layout.IdentityLoader(), loader.ForArchive(backupRoot)),
	}
	if err := tx.add(misc, entriesFrom(p.Modifications, loader.ForArchive(contentRoot))); err != nil {
		return nil, err
	}
	for _, element := range p.Elements {
		provider := element.Provider
		u := &unit{
			elementID: element.ID,
			provider:  &provider,
			key:       element.ID,
			ctx:       task.NewContext(layout.TargetLoader(provider), loader.ForElement(backupRoot, element.ID)),
		}
		if err := tx.add(u, entriesFrom(element.Modifications, loader.ForElement(contentRoot, element.ID))); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (pt *PatchTool) commitApply(id *identity.InstalledIdentity, p, rollback patch.Patch, configurationBackup bool) error {
	if err := pt.store.WriteRecord(identity.NewRecord(p, rollback, pt.now(), configurationBackup)); err != nil {
		return err
	}
	updated := id.Clone()
	updated.Patches = append(updated.Patches, p.ID)
	for _, element := range p.Elements {
		target, _ := updated.Target(element.Provider)
		target.Patches = append(target.Patches, element.ID)
	}
	if p.Type == patch.TypeCumulative {
		updated.Version = p.ResultingVersion
	}
	if err := pt.store.Save(updated); err != nil {
		return err
	}
	pt.logger.Info("patch committed", logging.KeyPatchID, p.ID, logging.KeyOperation, OperationApply)
	return nil
}
