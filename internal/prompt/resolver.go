package prompt

import (
	"fmt"
	"sync"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
)

var decisionOptions = []string{
	messages.PromptOptionOverride,
	messages.PromptOptionPreserve,
	messages.PromptOptionFail,
}

// Resolver is a policy that asks the user about every conflict the base
// policy would fail on. Answers are remembered per item, so a transaction
// that consults the policy more than once asks only once.
type Resolver struct {
	ui   UI
	base policy.Policy
	// Describe returns extra context shown with the question, such as a diff.
	Describe func(item patch.ContentItem) string

	mu      sync.Mutex
	answers map[string]policy.Decision
	err     error
}

// NewResolver returns a resolver asking through ui. A nil base fails every
// conflict, so every conflict is asked about.
func NewResolver(ui UI, base policy.Policy) *Resolver {
	if base == nil {
		base = policy.Strict
	}
	return &Resolver{ui: ui, base: base, answers: map[string]policy.Decision{}}
}

// Decide implements policy.Policy. Once a prompt fails, every later conflict
// fails without asking; Err reports the prompt error.
func (r *Resolver) Decide(item patch.ContentItem) policy.Decision {
	if d := r.base.Decide(item); d != policy.Fail {
		return d
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return policy.Fail
	}
	id := item.ID()
	if d, ok := r.answers[id]; ok {
		return d
	}

	description := ""
	if r.Describe != nil {
		description = r.Describe(item)
	}
	choice := messages.PromptOptionFail
	if err := r.ui.Select(fmt.Sprintf(messages.PromptConflictTitleFmt, id), description, decisionOptions, &choice); err != nil {
		r.err = err
		return policy.Fail
	}
	d, err := policy.ParseDecision(choice)
	if err != nil {
		r.err = err
		return policy.Fail
	}
	r.answers[id] = d
	return d
}

// Err returns the error that stopped prompting, if any.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
