package tool

import (
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/task"
)

// PlannedTask is what applying one relevant modification would do.
type PlannedTask struct {
	Element      string
	Kind         task.Kind
	Modification patch.ContentModification
	// Path is the installation path the task changes.
	Path string
	// SourcePath holds the new content; empty for removals and directories.
	SourcePath string
	Conflict   bool
	Decision   policy.Decision
	// Actual is the current hash of a conflicting item.
	Actual []byte
}

// Plan is the outcome of preparing a patch without executing it.
type Plan struct {
	PatchID string
	Tasks   []PlannedTask
	// Refused lists the conflicts that would fail the apply.
	Refused []patch.Conflict
}

// WouldFail reports whether applying with the planned policy would fail.
func (p *Plan) WouldFail() bool {
	return len(p.Refused) > 0
}

// Plan prepares the patch in archiveDir against the installation and
// consults pol for every conflict, then aborts. Backups go to a staging
// directory that is removed before returning.
func (pt *PatchTool) Plan(archiveDir string, pol policy.Policy) (*Plan, error) {
	if pol == nil {
		pol = policy.Strict
	}
	p, err := patch.LoadArchive(archiveDir)
	if err != nil {
		return nil, err
	}
	lock, err := pt.lock()
	if err != nil {
		return nil, err
	}
	defer pt.release(lock)

	id, err := pt.store.Load()
	if err != nil {
		return nil, err
	}
	if err := checkApplicable(id, p); err != nil {
		return nil, err
	}
	staging := pt.store.NewStagingDir()
	defer pt.removeDir(staging)

	logger := logging.WithPatch(pt.logger, p.ID, "plan")
	tx, err := buildApply(pt.store.Layout(), p, archiveDir, staging, logger)
	if err != nil {
		return nil, err
	}
	refused, err := tx.inspect(pol)
	tx.abort()
	if err != nil {
		return nil, err
	}

	plan := &Plan{PatchID: p.ID, Refused: refused}
	for _, u := range tx.units {
		for _, s := range u.steps {
			mod := s.task.Modification()
			planned := PlannedTask{
				Element:      u.elementID,
				Kind:         s.task.Kind(),
				Modification: mod,
				Conflict:     s.conflict,
				Decision:     s.decision,
			}
			conflict := s.task.Conflict()
			planned.Path = conflict.Path
			if s.conflict {
				planned.Actual = conflict.Actual
			}
			if mod.Type != patch.ModificationRemove && !mod.Item.Directory {
				planned.SourcePath, _ = s.task.Source().Resolve(mod.Item)
			}
			plan.Tasks = append(plan.Tasks, planned)
		}
	}
	return plan, nil
}
