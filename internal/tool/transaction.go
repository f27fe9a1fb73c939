package tool

import (
	"errors"
	"log/slog"

	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/task"
)

// newTaskFunc builds tasks; tests replace it to inject failures.
var newTaskFunc = task.New

// entry pairs a modification with the loader its new content comes from.
type entry struct {
	mod    patch.ContentModification
	source loader.Loader
}

func entriesFrom(mods []patch.ContentModification, source loader.Loader) []entry {
	out := make([]entry, 0, len(mods))
	for _, mod := range mods {
		out = append(out, entry{mod: mod, source: source})
	}
	return out
}

// step is one relevant task and the decision taken when it conflicted.
type step struct {
	task     task.Task
	conflict bool
	decision policy.Decision
}

func (s *step) skipped() bool {
	return s.conflict && s.decision == policy.Preserve
}

// unit is the set of tasks sharing one target and one backup location.
type unit struct {
	// elementID is empty for the identity's misc content.
	elementID string
	provider  *patch.Provider
	// key names the backup sub-directory; empty for misc content.
	key   string
	ctx   *task.Context
	steps []*step
}

type transaction struct {
	state         State
	units         []*unit
	configuration *configuration
	logger        *slog.Logger
}

func newTransaction(logger *slog.Logger) *transaction {
	return &transaction{state: StateBuilding, logger: logger}
}

func (tx *transaction) advance(ev event) error {
	next, err := transition(tx.state, ev)
	if err != nil {
		return err
	}
	tx.state = next
	tx.logger.Info("transaction "+ev.String(), logging.KeyPhase, next.String())
	return nil
}

// abort moves any live transaction to StateAborted.
func (tx *transaction) abort() {
	_ = tx.advance(eventAbort)
}

// add builds the relevant tasks of u.
func (tx *transaction) add(u *unit, entries []entry) error {
	for _, e := range entries {
		t, err := newTaskFunc(e.mod, e.source)
		if err != nil {
			return err
		}
		relevant, err := t.IsRelevant(u.ctx)
		if err != nil {
			return &patch.PatchingError{Op: "condition", Path: e.mod.Item.ID(), Err: err}
		}
		if !relevant {
			tx.logger.Debug("modification not relevant", logging.KeyElement, u.elementID, logging.KeyItem, e.mod.Item.ID())
			continue
		}
		u.steps = append(u.steps, &step{task: t})
	}
	tx.units = append(tx.units, u)
	return nil
}

// inspect prepares every task in order and consults pol once per conflicting
// item. It returns the conflicts pol refused.
func (tx *transaction) inspect(pol policy.Policy) ([]patch.Conflict, error) {
	var refused []patch.Conflict
	for _, u := range tx.units {
		for _, s := range u.steps {
			mod := s.task.Modification()
			ok, err := s.task.Prepare(u.ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
			s.conflict = true
			s.decision = pol.Decide(mod.Item)
			tx.logger.Debug("content conflict",
				logging.KeyElement, u.elementID,
				logging.KeyItem, mod.Item.ID(),
				logging.KeyDecision, s.decision.String(),
			)
			if s.decision == policy.Fail {
				refused = append(refused, s.task.Conflict())
			}
		}
	}
	return refused, nil
}

func (tx *transaction) prepare(pol policy.Policy) error {
	if _, err := transition(tx.state, eventPrepare); err != nil {
		return err
	}
	refused, err := tx.inspect(pol)
	if err != nil {
		return err
	}
	if len(refused) > 0 {
		return &patch.ContentConflictError{Conflicts: refused}
	}
	if tx.configuration != nil {
		if err := tx.configuration.backup(); err != nil {
			return err
		}
	}
	return tx.advance(eventPrepare)
}

// execute runs the non-preserved tasks in order.
func (tx *transaction) execute() error {
	if _, err := transition(tx.state, eventExecute); err != nil {
		return err
	}
	for _, u := range tx.units {
		for _, s := range u.steps {
			if s.skipped() {
				continue
			}
			if err := s.task.Execute(u.ctx); err != nil {
				return asPatchingError(s.task.Modification(), err)
			}
		}
	}
	if tx.configuration != nil {
		if err := tx.configuration.execute(); err != nil {
			return &patch.PatchingError{Op: "configuration", Path: tx.configuration.home, Err: err}
		}
	}
	return tx.advance(eventExecute)
}

func asPatchingError(mod patch.ContentModification, err error) error {
	var pe *patch.PatchingError
	if errors.As(err, &pe) {
		return err
	}
	return &patch.PatchingError{Op: "execute", Path: mod.Item.ID(), Err: err}
}

// outcome splits the relevant modifications into executed and preserved ones.
func (tx *transaction) outcome() (applied, preserved []patch.ContentModification) {
	for _, u := range tx.units {
		for _, s := range u.steps {
			if s.skipped() {
				preserved = append(preserved, s.task.Modification())
				continue
			}
			applied = append(applied, s.task.Modification())
		}
	}
	return applied, preserved
}

// rollbackPatch assembles the recorded inverse modifications as patch id
// carrying the metadata of base.
func (tx *transaction) rollbackPatch(id string, base patch.Patch) patch.Patch {
	out := patch.Patch{
		ID:               id,
		Type:             base.Type,
		Identity:         base.Identity,
		ResultingVersion: base.ResultingVersion,
		Description:      base.Description,
	}
	for _, u := range tx.units {
		mods := u.ctx.RollbackModifications()
		if u.provider == nil {
			out.Modifications = append(out.Modifications, mods...)
			continue
		}
		out.Elements = append(out.Elements, patch.Element{
			ID:            u.elementID,
			Provider:      *u.provider,
			Modifications: mods,
		})
	}
	return out
}

// undo replays the recorded inverse modifications, last unit first, with
// staging receiving the copies of the state being undone. Conflicts are not
// consulted: the content being replaced is the content this transaction wrote.
func (tx *transaction) undo(staging string) error {
	var errs []error
	for i := len(tx.units) - 1; i >= 0; i-- {
		u := tx.units[i]
		ctx := task.NewRollbackContext(u.ctx.Target, loader.ForElement(staging, u.key))
		var tasks []task.Task
		for _, mod := range u.ctx.RollbackModifications() {
			t, err := task.New(mod, u.ctx.Backup)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, err := t.Prepare(ctx); err != nil {
				errs = append(errs, err)
				continue
			}
			tasks = append(tasks, t)
		}
		for _, t := range tasks {
			if err := t.Execute(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if tx.configuration != nil {
		if err := tx.configuration.undo(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
