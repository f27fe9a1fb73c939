package patch

import (
	"fmt"
	"strings"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
)

// ModificationType is the operation a modification performs on its item.
type ModificationType string

const (
	// ModificationAdd introduces an item that does not exist yet.
	ModificationAdd ModificationType = "ADD"
	// ModificationModify replaces existing content.
	ModificationModify ModificationType = "MODIFY"
	// ModificationRemove deletes an item.
	ModificationRemove ModificationType = "REMOVE"
)

// ParseModificationType parses add, modify or remove (case-insensitive).
func ParseModificationType(s string) (ModificationType, error) {
	switch t := ModificationType(strings.ToUpper(strings.TrimSpace(s))); t {
	case ModificationAdd, ModificationModify, ModificationRemove:
		return t, nil
	default:
		return "", fmt.Errorf(messages.PatchModificationTypeInvalid, s)
	}
}

// ContentModification is one change to one content item.
type ContentModification struct {
	Item ContentItem
	Type ModificationType
	// TargetHash is the hash the item has after an ADD or MODIFY. Ignored for REMOVE.
	TargetHash []byte
	// ExpectedHash is the hash the item must have before the change. NoContent for ADD.
	ExpectedHash []byte
	// Condition gates whether the modification applies at all. nil means always.
	Condition ModificationCondition
}

// ResultHash is the hash the item has once the modification is applied.
func (m ContentModification) ResultHash() []byte {
	if m.Type == ModificationRemove {
		return hashutil.NoContent
	}
	return m.TargetHash
}

func (m ContentModification) String() string {
	return string(m.Type) + " " + m.Item.ID()
}

// Validate checks the item and the hashes the modification type needs.
func (m ContentModification) Validate() error {
	if err := m.Item.Validate(); err != nil {
		return err
	}
	switch m.Type {
	case ModificationAdd:
		if !hashutil.IsNoContent(m.ExpectedHash) {
			return fmt.Errorf(messages.PatchExpectedHashForbiddenFmt, m.Item.ID())
		}
		if !m.Item.Directory && hashutil.IsNoContent(m.TargetHash) {
			return fmt.Errorf(messages.PatchTargetHashRequiredFmt, strings.ToLower(string(m.Type)), m.Item.ID())
		}
	case ModificationModify:
		if m.Item.Directory {
			return nil
		}
		if hashutil.IsNoContent(m.TargetHash) {
			return fmt.Errorf(messages.PatchTargetHashRequiredFmt, strings.ToLower(string(m.Type)), m.Item.ID())
		}
		if hashutil.IsNoContent(m.ExpectedHash) {
			return fmt.Errorf(messages.PatchExpectedHashRequiredFmt, strings.ToLower(string(m.Type)), m.Item.ID())
		}
	case ModificationRemove:
		if !m.Item.Directory && hashutil.IsNoContent(m.ExpectedHash) {
			return fmt.Errorf(messages.PatchExpectedHashRequiredFmt, strings.ToLower(string(m.Type)), m.Item.ID())
		}
	default:
		return fmt.Errorf(messages.PatchModificationTypeInvalid, m.Type)
	}
	return nil
}

// ConditionContext answers questions about the current installation state.
type ConditionContext interface {
	// CurrentHash returns the item's current hash and whether it exists.
	CurrentHash(item ContentItem) (hash []byte, exists bool, err error)
}

// ModificationCondition decides whether a modification is relevant.
type ModificationCondition interface {
	Applies(ctx ConditionContext) (bool, error)
	String() string
}

// RequiresCondition applies when Item exists and, if Hash is set, has that hash.
type RequiresCondition struct {
	Item ContentItem
	Hash []byte
}

// Applies implements ModificationCondition.
func (c RequiresCondition) Applies(ctx ConditionContext) (bool, error) {
	current, exists, err := ctx.CurrentHash(c.Item)
	if err != nil || !exists {
		return false, err
	}
	if hashutil.IsNoContent(c.Hash) {
		return true, nil
	}
	return hashutil.Equal(current, c.Hash), nil
}

func (c RequiresCondition) String() string {
	if hashutil.IsNoContent(c.Hash) {
		return "requires " + c.Item.ID()
	}
	return "requires " + c.Item.ID() + "@" + hashutil.Format(c.Hash)
}
