package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/preview"
	"github.com/conn-castle/patchtool/internal/prompt"
	"github.com/conn-castle/patchtool/internal/tool"
)

var newPromptUI = func() prompt.UI { return prompt.NewHuhUI() }

func newApplyCmd(root *rootFlags) *cobra.Command {
	var (
		pf          policyFlags
		cf          confirmFlags
		interactive bool
		autoUndo    bool
	)
	cmd := &cobra.Command{
		Use:   messages.ApplyUse,
		Short: messages.ApplyShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := args[0]
			if (interactive || cf.needsTerminal()) && !isTerminal() {
				if interactive {
					return errors.New(messages.PromptRequiresTerminal)
				}
				return errors.New(messages.ApplyRequiresTerminal)
			}
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			pt, err := s.tool(autoUndo)
			if err != nil {
				return err
			}

			pol := policy.FromOptions(pf.options(s.cfg))
			var resolver *prompt.Resolver
			if interactive {
				resolver, err = newResolver(pt, archive, pol)
				if err != nil {
					return err
				}
				pol = resolver
			}

			res, err := pt.ApplyPatch(archive, pol)
			if err != nil {
				if resolver != nil && resolver.Err() != nil {
					return errors.Join(resolver.Err(), err)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.ApplyRollbackHeaderFmt, res.Rollback.ID, res.Rollback.ModificationCount())
			return finishResult(cmd, res, res.PatchID, &cf, finishMessages{
				prompt:    messages.ApplyCommitPromptFmt,
				committed: messages.ApplyCommittedFmt,
				discarded: messages.ApplyDiscardedFmt,
				dryRun:    messages.ApplyDryRunFmt,
			})
		},
	}
	pf.register(cmd)
	cf.register(cmd, messages.ApplyFlagDryRun)
	cmd.Flags().BoolVar(&interactive, "interactive", false, messages.PolicyFlagInteractive)
	cmd.Flags().BoolVar(&autoUndo, "auto-undo", false, messages.ApplyFlagAutoUndo)
	return cmd
}

// newResolver plans the patch to collect diffs for conflicting misc files,
// then returns a policy that asks about every conflict pol would fail on.
func newResolver(pt *tool.PatchTool, archive string, pol policy.Policy) (*prompt.Resolver, error) {
	plan, err := pt.Plan(archive, pol)
	if err != nil {
		return nil, err
	}
	diffs := map[string]string{}
	for _, task := range plan.Tasks {
		if !task.Conflict || !isMiscFile(task.Modification) {
			continue
		}
		diff, err := preview.Files(task.Modification.Item.RelativePath(), task.Path, task.SourcePath, preview.DefaultMaxLines)
		if err != nil {
			return nil, err
		}
		diffs[task.Modification.Item.ID()] = diff.Unified
	}
	resolver := prompt.NewResolver(newPromptUI(), pol)
	resolver.Describe = func(item patch.ContentItem) string {
		return diffs[item.ID()]
	}
	return resolver, nil
}

func isMiscFile(mod patch.ContentModification) bool {
	return mod.Item.Type == patch.ContentMisc && !mod.Item.Directory
}

type finishMessages struct {
	prompt    string
	committed string
	discarded string
	dryRun    string
}

// finishResult prints an executed result, then commits or discards it.
// subject names the patch in user-facing messages.
func finishResult(cmd *cobra.Command, res *tool.PatchingResult, subject string, cf *confirmFlags, msgs finishMessages) error {
	out := cmd.OutOrStdout()
	printModifications(out, res.Applied, res.Preserved)

	commit, err := cf.decide(cmd, fmt.Sprintf(msgs.prompt, subject))
	if err != nil {
		return errors.Join(err, res.Discard())
	}
	if !commit {
		if err := res.Discard(); err != nil {
			return err
		}
		if cf.dryRun {
			_, _ = fmt.Fprintf(out, msgs.dryRun, subject)
		} else {
			_, _ = fmt.Fprintf(out, msgs.discarded, subject)
		}
		return nil
	}
	if err := res.Commit(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, msgs.committed, subject, len(res.Applied), len(res.Preserved))
	return nil
}
