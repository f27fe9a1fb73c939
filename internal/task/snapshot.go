package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

type state int

const (
	stateAbsent state = iota
	stateFile
	stateDir
)

type fileEntry struct {
	rel  string
	hash []byte
}

// snapshot is the pre-mutation state of an item as backed up.
type snapshot struct {
	state state
	// hash is the file hash, the tree hash of a module, or NoContent.
	hash []byte
	// files and emptyDirs describe a misc directory; "" is the directory itself.
	files     []fileEntry
	emptyDirs []string
}

// isAbsent treats a missing path, or a path beneath a regular file, as absent.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// captureMisc snapshots a misc path and copies it under ctx.Backup.
func captureMisc(ctx *Context, item patch.ContentItem, path string) (snapshot, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if isAbsent(err) {
			return snapshot{state: stateAbsent, hash: hashutil.NoContent}, nil
		}
		return snapshot{}, err
	}
	switch {
	case info.Mode().IsRegular():
		fileItem := item
		fileItem.Directory = false
		dest, err := ctx.Backup.Resolve(fileItem)
		if err != nil {
			return snapshot{}, err
		}
		hash, err := hashutil.CopyFile(path, dest)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{state: stateFile, hash: hash}, nil
	case info.IsDir():
		files, emptyDirs, err := walkDir(path)
		if err != nil {
			return snapshot{}, err
		}
		snap := snapshot{state: stateDir, hash: hashutil.NoContent, emptyDirs: emptyDirs}
		for _, rel := range files {
			dest, err := ctx.Backup.Resolve(item.Child(rel, false))
			if err != nil {
				return snapshot{}, err
			}
			hash, err := hashutil.CopyFile(filepath.Join(path, filepath.FromSlash(rel)), dest)
			if err != nil {
				return snapshot{}, err
			}
			snap.files = append(snap.files, fileEntry{rel: rel, hash: hash})
		}
		return snap, nil
	default:
		return snapshot{}, fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, path)
	}
}

// captureTree snapshots a module or bundle directory and copies it under ctx.Backup.
func captureTree(ctx *Context, item patch.ContentItem, path string) (snapshot, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if isAbsent(err) {
			return snapshot{state: stateAbsent, hash: hashutil.NoContent}, nil
		}
		return snapshot{}, err
	}
	if !info.IsDir() {
		return snapshot{}, fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, path)
	}
	dest, err := ctx.Backup.Resolve(item)
	if err != nil {
		return snapshot{}, err
	}
	if _, err := hashutil.RecursiveDelete(dest); err != nil {
		return snapshot{}, err
	}
	hash, err := hashutil.CopyTree(path, dest)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{state: stateDir, hash: hash}, nil
}

// walkDir lists the regular files and empty directories under root as slash
// separated relative paths, sorted. An empty root is reported as "".
func walkDir(root string) (files []string, emptyDirs []string, err error) {
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			emptyDirs = append(emptyDirs, rel)
			return nil
		}
		for _, entry := range entries {
			childRel := entry.Name()
			if rel != "" {
				childRel = rel + "/" + entry.Name()
			}
			childPath := filepath.Join(dir, entry.Name())
			switch {
			case entry.IsDir():
				if err := walk(childPath, childRel); err != nil {
					return err
				}
			case entry.Type().IsRegular():
				files = append(files, childRel)
			default:
				return fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, childPath)
			}
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	sort.Strings(emptyDirs)
	return files, emptyDirs, nil
}
