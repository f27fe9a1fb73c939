package tool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
)

// configuration copies the configured directories aside during prepare and,
// when restoreFrom is set, replaces them with an earlier copy during execute.
type configuration struct {
	home string
	// dirs are relative to home.
	dirs []string
	// backupDir receives the current configuration.
	backupDir string
	// restoreFrom holds the configuration execute brings back.
	restoreFrom string

	restored bool
}

func (c *configuration) backup() error {
	if err := os.MkdirAll(c.backupDir, 0o755); err != nil {
		return fmt.Errorf(messages.ToolConfigurationBackupFmt, c.backupDir, err)
	}
	for _, rel := range c.dirs {
		src := filepath.Join(c.home, rel)
		if err := copyEntry(src, filepath.Join(c.backupDir, rel)); err != nil {
			return fmt.Errorf(messages.ToolConfigurationBackupFmt, src, err)
		}
	}
	return nil
}

func (c *configuration) execute() error {
	if c.restoreFrom == "" {
		return nil
	}
	c.restored = true
	return c.restore(c.restoreFrom)
}

func (c *configuration) undo() error {
	if !c.restored {
		return nil
	}
	return c.restore(c.backupDir)
}

// restore replaces every configured directory with its copy under from. A
// directory without a copy did not exist and is removed.
func (c *configuration) restore(from string) error {
	var errs []error
	for _, rel := range c.dirs {
		dest := filepath.Join(c.home, rel)
		if _, err := hashutil.RecursiveDelete(dest); err != nil {
			errs = append(errs, fmt.Errorf(messages.ToolConfigurationRestoreFmt, dest, err))
			continue
		}
		if err := copyEntry(filepath.Join(from, rel), dest); err != nil {
			errs = append(errs, fmt.Errorf(messages.ToolConfigurationRestoreFmt, dest, err))
		}
	}
	return errors.Join(errs...)
}

// copyEntry copies a file or directory; a missing src is not an error.
func copyEntry(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		_, err = hashutil.CopyTree(src, dest)
		return err
	}
	_, err = hashutil.CopyFile(src, dest)
	return err
}
