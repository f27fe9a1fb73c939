package hashutil

import (
	"errors"
	"os"
	"path/filepath"
)

// RecursiveDelete removes path bottom-up. It walks a snapshot of each directory
// taken before any child is removed, keeps going past failures, and reports
// whether everything was removed. Per-entry failures are joined into the error.
// A missing path counts as removed.
func RecursiveDelete(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if !info.IsDir() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
		return true, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	removed := true
	var errs []error
	for _, entry := range entries {
		ok, err := RecursiveDelete(filepath.Join(path, entry.Name()))
		if err != nil {
			errs = append(errs, err)
		}
		removed = removed && ok
	}
	if removed {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			removed = false
		}
	}
	return removed, errors.Join(errs...)
}
