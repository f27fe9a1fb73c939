// Package history walks an installation's applied patches from newest to
// oldest and validates that each can still be rolled back.
package history

import (
	"errors"
	"fmt"
	"slices"

	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/messages"
)

// Artifact names a part of a patch's stored state.
type Artifact string

const (
	ArtifactRecord        Artifact = "record"
	ArtifactMisc          Artifact = "misc"
	ArtifactModules       Artifact = "modules"
	ArtifactBundles       Artifact = "bundles"
	ArtifactElements      Artifact = "elements"
	ArtifactConfiguration Artifact = "configuration"
)

// Artifacts are validated in this order.
var Artifacts = []Artifact{ArtifactRecord, ArtifactMisc, ArtifactModules, ArtifactBundles, ArtifactElements, ArtifactConfiguration}

// ErrExhausted is returned by Peek and Next past the oldest patch.
var ErrExhausted = errors.New(messages.HistoryIteratorExhausted)

// RecordStore reads history records.
type RecordStore interface {
	ReadRecord(patchID string) (*identity.Record, error)
}

// Entry is one applied patch.
type Entry struct {
	PatchID string
	// Record is nil when it could not be read; RecordErr says why.
	Record    *identity.Record
	RecordErr error
}

// StateHandler validates one artifact of an entry.
type StateHandler func(entry *Entry) error

// ErrorHandler decides what a validation failure means. Returning nil keeps
// validating; returning an error stops NextWith with that error.
type ErrorHandler func(patchID string, artifact Artifact, err error) error

// ValidationError is a failed state handler.
type ValidationError struct {
	PatchID  string
	Artifact Artifact
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(messages.HistoryValidationFailedFmt, e.PatchID, e.Artifact, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Iterator walks a snapshot of the applied patch ids, newest first. It is
// not restartable.
type Iterator struct {
	ids      []string
	pos      int
	store    RecordStore
	handlers map[Artifact][]StateHandler
}

// New snapshots id's history.
func New(id *identity.InstalledIdentity, store RecordStore) *Iterator {
	ids := slices.Clone(id.Patches)
	slices.Reverse(ids)
	return &Iterator{ids: ids, store: store, handlers: map[Artifact][]StateHandler{}}
}

// AddStateHandler registers a validator for artifact.
func (it *Iterator) AddStateHandler(artifact Artifact, handler StateHandler) {
	it.handlers[artifact] = append(it.handlers[artifact], handler)
}

// HasNext reports whether another patch remains.
func (it *Iterator) HasNext() bool {
	return it.pos < len(it.ids)
}

// Peek returns the next patch id without advancing or validating.
func (it *Iterator) Peek() (string, error) {
	if !it.HasNext() {
		return "", ErrExhausted
	}
	return it.ids[it.pos], nil
}

// Next advances and validates, failing on the first invalid artifact.
func (it *Iterator) Next() (*Entry, error) {
	return it.NextWith(func(patchID string, artifact Artifact, err error) error {
		return &ValidationError{PatchID: patchID, Artifact: artifact, Err: err}
	})
}

// NextWith advances and validates, passing each failure to handler.
func (it *Iterator) NextWith(handler ErrorHandler) (*Entry, error) {
	if !it.HasNext() {
		return nil, ErrExhausted
	}
	entry := &Entry{PatchID: it.ids[it.pos]}
	it.pos++
	if it.store != nil {
		entry.Record, entry.RecordErr = it.store.ReadRecord(entry.PatchID)
		if entry.RecordErr != nil {
			entry.Record = nil
		}
	}
	for _, artifact := range Artifacts {
		for _, validate := range it.handlers[artifact] {
			err := validate(entry)
			if err == nil {
				continue
			}
			if handlerErr := handler(entry.PatchID, artifact, err); handlerErr != nil {
				return entry, handlerErr
			}
		}
	}
	return entry, nil
}

// Collector aggregates validation failures instead of stopping.
type Collector struct {
	Failures []*ValidationError
}

// Collect returns an empty collector.
func Collect() *Collector {
	return &Collector{}
}

// Handle is an ErrorHandler that records the failure and continues.
func (c *Collector) Handle(patchID string, artifact Artifact, err error) error {
	c.Failures = append(c.Failures, &ValidationError{PatchID: patchID, Artifact: artifact, Err: err})
	return nil
}

// For returns the failures recorded for patchID.
func (c *Collector) For(patchID string) []*ValidationError {
	var out []*ValidationError
	for _, failure := range c.Failures {
		if failure.PatchID == patchID {
			out = append(out, failure)
		}
	}
	return out
}

// Err joins every recorded failure, or returns nil.
func (c *Collector) Err() error {
	errs := make([]error, 0, len(c.Failures))
	for _, failure := range c.Failures {
		errs = append(errs, failure)
	}
	return errors.Join(errs...)
}
