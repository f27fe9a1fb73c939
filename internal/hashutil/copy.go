package hashutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conn-castle/patchtool/internal/messages"
)

const copyBufferSize = 32 * 1024

// CopyAndHash streams r into dest and returns the SHA-256 of the bytes written.
// Parent directories are created. The data lands in a sibling temp file that is
// renamed over dest only after a complete write; on failure the temp file is
// removed and dest is untouched.
func CopyAndHash(r io.Reader, dest string, perm os.FileMode) ([]byte, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".patch-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	fail := func(err error) ([]byte, error) {
		_ = tmp.Close()
		return nil, errors.Join(err, os.Remove(tmpName))
	}

	h := sha256.New()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(io.MultiWriter(tmp, h), r, buf); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Join(err, os.Remove(tmpName))
	}
	if err := os.Chmod(tmpName, perm.Perm()); err != nil {
		return nil, errors.Join(err, os.Remove(tmpName))
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, errors.Join(err, os.Remove(tmpName))
	}
	return h.Sum(nil), nil
}

// CopyFile copies the regular file src to dest, keeping its permission bits,
// and returns the content hash.
func CopyFile(src, dest string) ([]byte, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, src)
	}
	return CopyAndHash(file, dest, info.Mode())
}

// CopyTree copies the directory src to dest (which must not contain stale
// entries) and returns the HashTree of the copy.
func CopyTree(src, dest string) ([]byte, error) {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type().IsRegular():
			_, err := CopyFile(path, target)
			return err
		default:
			return fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, path)
		}
	})
	if err != nil {
		return nil, err
	}
	return HashTree(dest)
}
