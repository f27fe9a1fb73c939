// Package hashutil provides content hashing and the copy/delete primitives the
// patching engine builds on.
package hashutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conn-castle/patchtool/internal/messages"
)

// NoContent is the zero-length hash of absent content or an empty directory.
var NoContent = []byte{}

// ErrDirectoryHash reports an attempt to hash a non-empty directory as a single item.
var ErrDirectoryHash = errors.New(messages.HashDirectoryNotHashable)

// Hash returns the SHA-256 of the file at path. An empty directory hashes to NoContent.
func Hash(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return NoContent, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrDirectoryHash, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// HashTree digests a module or bundle directory: SHA-256 over the sorted
// "f <relpath> NUL <filehash>" lines of its files and "d <relpath>" lines of
// its empty directories. An empty tree hashes to NoContent. A regular file is
// hashed with Hash.
func HashTree(dir string) ([]byte, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return Hash(dir)
	}
	var lines []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		switch {
		case d.IsDir():
			entries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				lines = append(lines, "d "+rel+"\n")
			}
		case d.Type().IsRegular():
			sum, err := Hash(path)
			if err != nil {
				return err
			}
			lines = append(lines, "f "+rel+"\x00"+Format(sum)+"\n")
		default:
			return fmt.Errorf(messages.PatchUnsupportedFileTypeFmt, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return NoContent, nil
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		_, _ = io.WriteString(h, line)
	}
	return h.Sum(nil), nil
}

// Equal reports whether two hashes are identical. nil and NoContent are equal.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// IsNoContent reports whether h is the zero-length hash.
func IsNoContent(h []byte) bool {
	return len(h) == 0
}

// Format renders h as lowercase hex. NoContent renders as the empty string.
func Format(h []byte) string {
	return hex.EncodeToString(h)
}

// Parse decodes a hex hash. The empty string parses to NoContent.
func Parse(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoContent, nil
	}
	h, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(h) != sha256.Size {
		return nil, fmt.Errorf(messages.HashLengthFmt, sha256.Size, len(h))
	}
	return h, nil
}
