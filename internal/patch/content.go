// Package patch defines the content model of a patch: content items, the
// modifications applied to them, patches and their per-target elements.
package patch

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/conn-castle/patchtool/internal/messages"
)

// ContentType is the kind of installation content a modification targets.
type ContentType string

const (
	// ContentModule is a module directory under a layer or add-on module root.
	ContentModule ContentType = "module"
	// ContentBundle is a bundle directory under a layer or add-on bundle root.
	ContentBundle ContentType = "bundle"
	// ContentMisc is a file or directory relative to the installation home.
	ContentMisc ContentType = "misc"
)

// DefaultSlot is the slot used when a module or bundle names none.
const DefaultSlot = "main"

// ParseContentType parses module, bundle or misc (case-insensitive).
func ParseContentType(s string) (ContentType, error) {
	switch t := ContentType(strings.ToLower(strings.TrimSpace(s))); t {
	case ContentModule, ContentBundle, ContentMisc:
		return t, nil
	default:
		return "", fmt.Errorf(messages.PatchContentTypeInvalidFmt, s)
	}
}

// Dir is the directory name used for the content type in archives and ids.
func (t ContentType) Dir() string {
	switch t {
	case ContentModule:
		return "modules"
	case ContentBundle:
		return "bundles"
	default:
		return string(t)
	}
}

// ContentItem identifies one piece of installation content. It is a comparable
// value: two items are equal when all fields are equal.
type ContentItem struct {
	Type ContentType
	// Name is the module/bundle name (dot separated) or the misc file name.
	Name string
	// Slot qualifies modules and bundles.
	Slot string
	// Path holds the slash separated parent directories of a misc item.
	Path string
	// Directory marks a misc item that is a directory rather than a file.
	Directory bool
}

// NewModuleItem returns a module item; an empty slot means DefaultSlot.
func NewModuleItem(name, slot string) ContentItem {
	return ContentItem{Type: ContentModule, Name: name, Slot: defaultSlot(slot)}
}

// NewBundleItem returns a bundle item; an empty slot means DefaultSlot.
func NewBundleItem(name, slot string) ContentItem {
	return ContentItem{Type: ContentBundle, Name: name, Slot: defaultSlot(slot)}
}

// NewMiscItem returns a misc file item for a slash separated relative path.
func NewMiscItem(relPath string) ContentItem {
	dir, name := path.Split(strings.Trim(relPath, "/"))
	return ContentItem{Type: ContentMisc, Name: name, Path: strings.TrimSuffix(dir, "/")}
}

// NewMiscDirItem returns a misc directory marker item.
func NewMiscDirItem(relPath string) ContentItem {
	item := NewMiscItem(relPath)
	item.Directory = true
	return item
}

func defaultSlot(slot string) string {
	if slot == "" {
		return DefaultSlot
	}
	return slot
}

// RelativePath is the item's slash separated location under its content root.
func (c ContentItem) RelativePath() string {
	switch c.Type {
	case ContentModule, ContentBundle:
		return strings.ReplaceAll(c.Name, ".", "/") + "/" + defaultSlot(c.Slot)
	default:
		if c.Path == "" {
			return c.Name
		}
		return c.Path + "/" + c.Name
	}
}

// ID is the canonical identifier: misc/<path>/<name>, modules/<name>:<slot>
// or bundles/<name>:<slot>.
func (c ContentItem) ID() string {
	switch c.Type {
	case ContentModule, ContentBundle:
		return c.Type.Dir() + "/" + c.Name + ":" + defaultSlot(c.Slot)
	default:
		return "misc/" + c.RelativePath()
	}
}

// Key is the ID with a trailing slash for directory markers, so a marker and
// the file it replaces at the same path stay distinct.
func (c ContentItem) Key() string {
	if c.Directory {
		return c.ID() + "/"
	}
	return c.ID()
}

func (c ContentItem) String() string {
	return c.ID()
}

// Matches reports whether p names this item by ID or by relative path.
func (c ContentItem) Matches(p string) bool {
	p = strings.Trim(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"), "/")
	if p == "" {
		return false
	}
	return p == c.ID() || p == c.RelativePath()
}

// Child returns the misc item for a descendant of this misc directory.
// rel is slash separated and relative to the item.
func (c ContentItem) Child(rel string, directory bool) ContentItem {
	child := NewMiscItem(c.RelativePath() + "/" + rel)
	child.Directory = directory
	return child
}

// Contains reports whether other is this misc item or lies beneath it.
func (c ContentItem) Contains(other ContentItem) bool {
	if c.Type != ContentMisc || other.Type != ContentMisc {
		return c.ID() == other.ID()
	}
	mine, theirs := c.RelativePath(), other.RelativePath()
	return mine == theirs || strings.HasPrefix(theirs, mine+"/")
}

// Depth is the number of path segments of a misc item.
func (c ContentItem) Depth() int {
	return strings.Count(c.RelativePath(), "/") + 1
}

// Validate checks that the item is well formed.
func (c ContentItem) Validate() error {
	switch c.Type {
	case ContentModule, ContentBundle:
		if strings.TrimSpace(c.Name) == "" {
			return errors.New(messages.PatchItemNameRequired)
		}
		if c.Directory {
			return errors.New(messages.PatchItemDirectoryMiscOnly)
		}
		for _, segment := range strings.Split(c.RelativePath(), "/") {
			if !validSegment(segment) {
				return fmt.Errorf(messages.PatchItemPathInvalidFmt, c.Name)
			}
		}
	case ContentMisc:
		if strings.TrimSpace(c.Name) == "" {
			return errors.New(messages.PatchItemNameRequired)
		}
		for _, segment := range strings.Split(c.RelativePath(), "/") {
			if !validSegment(segment) {
				return fmt.Errorf(messages.PatchItemPathInvalidFmt, c.RelativePath())
			}
		}
	default:
		return fmt.Errorf(messages.PatchContentTypeInvalidFmt, c.Type)
	}
	return nil
}

func validSegment(segment string) bool {
	return segment != "" && segment != "." && segment != ".." && !strings.ContainsAny(segment, "\\\x00")
}

// ParseItemID parses an ID produced by ContentItem.ID. The Directory flag is
// not part of the id and is left false.
func ParseItemID(id string) (ContentItem, error) {
	id = strings.TrimSpace(id)
	prefix, rest, ok := strings.Cut(id, "/")
	if !ok || rest == "" {
		return ContentItem{}, fmt.Errorf(messages.PatchItemIDInvalidFmt, id)
	}
	var item ContentItem
	switch prefix {
	case "misc":
		item = NewMiscItem(rest)
	case ContentModule.Dir(), ContentBundle.Dir():
		name, slot, _ := strings.Cut(rest, ":")
		if prefix == ContentModule.Dir() {
			item = NewModuleItem(name, slot)
		} else {
			item = NewBundleItem(name, slot)
		}
	default:
		return ContentItem{}, fmt.Errorf(messages.PatchItemIDInvalidFmt, id)
	}
	if err := item.Validate(); err != nil {
		return ContentItem{}, fmt.Errorf(messages.PatchItemIDInvalidFmt, id)
	}
	return item, nil
}
