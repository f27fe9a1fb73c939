// Package terminal detects whether the tool talks to an interactive terminal.
package terminal

import (
	"os"

	"golang.org/x/term"
)

// fileDescriptor is implemented by *os.File and anything else backed by a descriptor.
type fileDescriptor interface {
	Fd() uintptr
}

// IsInteractive reports whether stdin and stdout are both terminals.
// Confirmation prompts and conflict forms require it.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// IsTerminal reports whether stream is backed by a terminal. Buffers and
// pipes report false.
func IsTerminal(stream any) bool {
	f, ok := stream.(fileDescriptor)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
