// Package policy decides how conflicting content is handled during patching.
package policy

import (
	"fmt"
	"strings"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
)

// Decision is the outcome for one conflicting item.
type Decision int

const (
	// Fail aborts the transaction.
	Fail Decision = iota
	// Override replaces the installed content anyway.
	Override
	// Preserve keeps the installed content and skips the modification.
	Preserve
)

func (d Decision) String() string {
	switch d {
	case Override:
		return "override"
	case Preserve:
		return "preserve"
	default:
		return "fail"
	}
}

// ParseDecision parses fail, override or preserve.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail":
		return Fail, nil
	case "override":
		return Override, nil
	case "preserve":
		return Preserve, nil
	default:
		return Fail, fmt.Errorf(messages.PolicyDecisionInvalidFmt, s)
	}
}

// Policy maps a conflicting item to a decision.
type Policy interface {
	Decide(item patch.ContentItem) Decision
}

// Func adapts a function to Policy.
type Func func(item patch.ContentItem) Decision

// Decide implements Policy.
func (f Func) Decide(item patch.ContentItem) Decision {
	return f(item)
}

// Strict fails on every conflict.
var Strict Policy = Func(func(patch.ContentItem) Decision { return Fail })

// Options mirrors the external policy inputs.
type Options struct {
	OverrideAll     bool     `toml:"override-all" json:"override_all"`
	OverrideModules bool     `toml:"override-modules" json:"override_modules"`
	Override        []string `toml:"override" json:"override"`
	Preserve        []string `toml:"preserve" json:"preserve"`
}

// FromOptions builds the policy described by opts.
func FromOptions(opts Options) Policy {
	b := NewBuilder()
	if opts.OverrideAll {
		b.OverrideAll()
	}
	if opts.OverrideModules {
		b.IgnoreModuleChanges()
	}
	for _, p := range opts.Override {
		b.OverrideItem(p)
	}
	for _, p := range opts.Preserve {
		b.PreserveItem(p)
	}
	return b.Build()
}

// Builder assembles a policy. Per-path preserve wins over per-path override,
// which wins over the blanket switches; anything else fails.
type Builder struct {
	overrideAll     bool
	overrideModules bool
	override        []string
	preserve        []string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// IgnoreModuleChanges overrides conflicting modules and bundles.
func (b *Builder) IgnoreModuleChanges() *Builder {
	b.overrideModules = true
	return b
}

// OverrideAll overrides every conflict not explicitly preserved.
func (b *Builder) OverrideAll() *Builder {
	b.overrideAll = true
	return b
}

// OverrideItem overrides the item named by path (item id or relative path).
func (b *Builder) OverrideItem(path string) *Builder {
	if p := strings.TrimSpace(path); p != "" {
		b.override = append(b.override, p)
	}
	return b
}

// PreserveItem keeps the installed content of the item named by path.
func (b *Builder) PreserveItem(path string) *Builder {
	if p := strings.TrimSpace(path); p != "" {
		b.preserve = append(b.preserve, p)
	}
	return b
}

// Build returns an immutable policy.
func (b *Builder) Build() Policy {
	return &builtPolicy{
		overrideAll:     b.overrideAll,
		overrideModules: b.overrideModules,
		override:        append([]string(nil), b.override...),
		preserve:        append([]string(nil), b.preserve...),
	}
}

type builtPolicy struct {
	overrideAll     bool
	overrideModules bool
	override        []string
	preserve        []string
}

func (p *builtPolicy) Decide(item patch.ContentItem) Decision {
	if matchesAny(item, p.preserve) {
		return Preserve
	}
	if matchesAny(item, p.override) {
		return Override
	}
	if p.overrideAll {
		return Override
	}
	if p.overrideModules && item.Type != patch.ContentMisc {
		return Override
	}
	return Fail
}

func matchesAny(item patch.ContentItem, paths []string) bool {
	for _, p := range paths {
		if item.Matches(p) {
			return true
		}
	}
	return false
}
