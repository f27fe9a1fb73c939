package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/loader"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

const (
	// MetadataDirName is the installation metadata directory under home.
	MetadataDirName  = ".installation"
	identityFileName = "identity.json"
	patchesDirName   = "patches"
	stagingDirName   = "staging"
	recordFileName   = "rollback.json"
	lockFileName     = "lock"
	// ConfigurationDirName holds configuration backups inside a patch directory.
	ConfigurationDirName = "configuration"
)

// Defaults describe the identity used before any patch was committed.
type Defaults struct {
	Name    string
	Version string
	Layers  []string
	AddOns  []string
}

// Store persists the installed identity and per-patch history records.
type Store struct {
	layout   Layout
	defaults Defaults
}

// NewStore returns a store for the installation described by layout.
func NewStore(layout Layout, defaults Defaults) *Store {
	return &Store{layout: layout, defaults: defaults}
}

// Layout returns the installation layout.
func (s *Store) Layout() Layout {
	return s.layout
}

// Dir is the metadata directory.
func (s *Store) Dir() string {
	return filepath.Join(s.layout.Home, MetadataDirName)
}

// LockPath is the installation lock file.
func (s *Store) LockPath() string {
	return filepath.Join(s.Dir(), lockFileName)
}

// IdentityPath is the identity file.
func (s *Store) IdentityPath() string {
	return filepath.Join(s.Dir(), identityFileName)
}

// PatchDir is the backup directory of a patch.
func (s *Store) PatchDir(patchID string) string {
	return filepath.Join(s.Dir(), patchesDirName, patchID)
}

// RecordPath is the history record of a patch.
func (s *Store) RecordPath(patchID string) string {
	return filepath.Join(s.PatchDir(patchID), recordFileName)
}

// ConfigurationDir holds the configuration captured when patchID was applied.
func (s *Store) ConfigurationDir(patchID string) string {
	return filepath.Join(s.PatchDir(patchID), ConfigurationDirName)
}

// BackupLoader addresses the pre-mutation copies a patch left behind. An empty
// elementID addresses the patch's misc content.
func (s *Store) BackupLoader(patchID, elementID string) loader.Loader {
	return loader.ForElement(s.PatchDir(patchID), elementID)
}

// EnsureDir creates the metadata directory.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf(messages.StoreCreateDirFmt, s.Dir(), err)
	}
	return nil
}

// NewStagingDir returns a fresh, not yet created, throwaway backup directory.
func (s *Store) NewStagingDir() string {
	return filepath.Join(s.Dir(), stagingDirName, uuid.NewString())
}

// PatchDirExists reports whether a backup directory for patchID exists.
func (s *Store) PatchDirExists(patchID string) (bool, error) {
	_, err := os.Stat(s.PatchDir(patchID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Load reads the identity, falling back to the defaults when none was saved.
// Targets named in the defaults but missing from the file are added with an
// empty history.
func (s *Store) Load() (*InstalledIdentity, error) {
	path := s.IdentityPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.defaultIdentity(), nil
		}
		return nil, fmt.Errorf(messages.IdentityReadFmt, path, err)
	}
	var id InstalledIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf(messages.IdentityDecodeFmt, path, err)
	}
	if err := validateIdentity(&id); err != nil {
		return nil, fmt.Errorf(messages.IdentityValidateFmt, path, err)
	}
	s.addMissingTargets(&id)
	return &id, nil
}

func (s *Store) defaultIdentity() *InstalledIdentity {
	id := &InstalledIdentity{
		SchemaVersion: identitySchemaVersion,
		Name:          s.defaults.Name,
		Version:       s.defaults.Version,
		Patches:       []string{},
		Layers:        []*Target{},
		AddOns:        []*Target{},
	}
	s.addMissingTargets(id)
	return id
}

func (s *Store) addMissingTargets(id *InstalledIdentity) {
	for _, name := range s.defaults.Layers {
		if _, ok := id.Target(patch.Provider{Name: name, Kind: patch.ProviderLayer}); !ok {
			id.Layers = append(id.Layers, &Target{Name: name, Kind: patch.ProviderLayer, Patches: []string{}})
		}
	}
	for _, name := range s.defaults.AddOns {
		if _, ok := id.Target(patch.Provider{Name: name, Kind: patch.ProviderAddOn}); !ok {
			id.AddOns = append(id.AddOns, &Target{Name: name, Kind: patch.ProviderAddOn, Patches: []string{}})
		}
	}
}

// Save writes the identity atomically.
func (s *Store) Save(id *InstalledIdentity) error {
	if err := validateIdentity(id); err != nil {
		return fmt.Errorf(messages.IdentityValidateFmt, s.IdentityPath(), err)
	}
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return writeJSON(s.IdentityPath(), id, messages.IdentityWriteFmt)
}

// ReadRecord reads and validates the history record of patchID.
func (s *Store) ReadRecord(patchID string) (*Record, error) {
	path := s.RecordPath(patchID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(messages.RecordReadFmt, path, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf(messages.RecordDecodeFmt, path, err)
	}
	if err := validateRecord(&record); err != nil {
		return nil, fmt.Errorf(messages.RecordValidateFmt, path, err)
	}
	if record.PatchID != patchID {
		return nil, fmt.Errorf(messages.RecordPatchIDMismatchFmt, path, record.PatchID)
	}
	return &record, nil
}

// WriteRecord validates and atomically writes a history record.
func (s *Store) WriteRecord(record *Record) error {
	path := s.RecordPath(record.PatchID)
	if err := validateRecord(record); err != nil {
		return fmt.Errorf(messages.RecordValidateFmt, path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.StoreCreateDirFmt, dir, err)
	}
	return writeJSON(path, record, messages.RecordWriteFmt)
}

// ListPatchDirs returns the ids of all backup directories, sorted.
func (s *Store) ListPatchDirs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir(), patchesDirName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func writeJSON(path string, v any, errFmt string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf(errFmt, path, err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf(errFmt, path, err)
	}
	return nil
}
