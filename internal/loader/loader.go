// Package loader maps content items to locations under per-type content roots.
// The same mapping serves the installation, patch archives and backup records.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// Loader resolves content items beneath three roots.
type Loader struct {
	MiscRoot   string
	ModuleRoot string
	BundleRoot string
}

// ForArchive returns the loader for top-level content of an archive or backup
// directory: dir/misc, dir/modules and dir/bundles.
func ForArchive(dir string) Loader {
	return Loader{
		MiscRoot:   filepath.Join(dir, "misc"),
		ModuleRoot: filepath.Join(dir, patch.ContentModule.Dir()),
		BundleRoot: filepath.Join(dir, patch.ContentBundle.Dir()),
	}
}

// ForElement returns the loader for an element's content: module and bundle
// roots under dir/<elementID>/, misc under dir/misc. An empty elementID is ForArchive.
func ForElement(dir, elementID string) Loader {
	if elementID == "" {
		return ForArchive(dir)
	}
	return Loader{
		MiscRoot:   filepath.Join(dir, "misc"),
		ModuleRoot: filepath.Join(dir, elementID, patch.ContentModule.Dir()),
		BundleRoot: filepath.Join(dir, elementID, patch.ContentBundle.Dir()),
	}
}

// Root returns the root directory for a content type.
func (l Loader) Root(t patch.ContentType) string {
	switch t {
	case patch.ContentModule:
		return l.ModuleRoot
	case patch.ContentBundle:
		return l.BundleRoot
	case patch.ContentMisc:
		return l.MiscRoot
	default:
		return ""
	}
}

// Resolve returns the absolute location of item.
func (l Loader) Resolve(item patch.ContentItem) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	root := l.Root(item.Type)
	if root == "" {
		return "", fmt.Errorf(messages.PatchLoaderRootRequiredFmt, item.Type, item.ID())
	}
	resolved := filepath.Join(root, filepath.FromSlash(item.RelativePath()))
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf(messages.PatchLoaderOutsideRootFmt, item.ID(), root)
	}
	return resolved, nil
}

// Open opens item's content for reading. A missing item yields a
// *patch.ContentNotFoundError.
func (l Loader) Open(item patch.ContentItem) (io.ReadCloser, error) {
	path, err := l.Resolve(item)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &patch.ContentNotFoundError{Item: item, Path: path, Err: err}
		}
		return nil, err
	}
	return file, nil
}

// Stat reports item's file info and whether it exists.
func (l Loader) Stat(item patch.ContentItem) (fs.FileInfo, bool, error) {
	path, err := l.Resolve(item)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info, true, nil
}

// Require returns item's path, or a *patch.ContentNotFoundError when it is missing.
func (l Loader) Require(item patch.ContentItem) (string, fs.FileInfo, error) {
	path, err := l.Resolve(item)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, &patch.ContentNotFoundError{Item: item, Path: path, Err: err}
		}
		return "", nil, err
	}
	return path, info, nil
}
