// Package preview renders unified diffs between installed misc files and the
// content a patch would write.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aymanbagabas/go-udiff"

	"github.com/conn-castle/patchtool/internal/messages"
)

// DefaultMaxLines is the default maximum number of diff lines shown per file.
const DefaultMaxLines = 40

// Diff is a per-file diff preview.
type Diff struct {
	Name      string
	Unified   string
	Truncated bool
	Binary    bool
}

// Files diffs the installed file against the patch's file. Either path may be
// empty or missing, which is rendered as empty content.
func Files(name, installedPath, patchPath string, maxLines int) (Diff, error) {
	installed, err := readOptional(installedPath)
	if err != nil {
		return Diff{}, err
	}
	patched, err := readOptional(patchPath)
	if err != nil {
		return Diff{}, err
	}
	return Content(name, installed, patched, maxLines), nil
}

// Content diffs two in-memory versions of name.
func Content(name string, installed, patched []byte, maxLines int) Diff {
	if isBinary(installed) || isBinary(patched) {
		return Diff{Name: name, Binary: true, Unified: fmt.Sprintf(messages.PreviewBinaryFmt, name)}
	}
	rendered, truncated := renderTruncated(
		"installed/"+name,
		"patch/"+name,
		string(installed),
		string(patched),
		maxLines,
	)
	return Diff{Name: name, Unified: rendered, Truncated: truncated}
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return nil, fmt.Errorf(messages.PreviewReadFmt, path, err)
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data)
}

func normalizeMaxLines(value int) int {
	if value <= 0 {
		return DefaultMaxLines
	}
	return value
}

func renderTruncated(fromName, toName, fromContent, toContent string, maxLines int) (string, bool) {
	limit := normalizeMaxLines(maxLines)
	lines := splitLines(udiff.Unified(fromName, toName, fromContent, toContent))
	if len(lines) <= limit {
		return ensureTrailingNewline(strings.Join(lines, "\n")), false
	}
	truncated := append(lines[:limit:limit], fmt.Sprintf(messages.PreviewTruncatedFmt, limit))
	return ensureTrailingNewline(strings.Join(truncated, "\n")), true
}

func splitLines(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}

func ensureTrailingNewline(content string) string {
	if content == "" || strings.HasSuffix(content, "\n") {
		return content
	}
	return content + "\n"
}
