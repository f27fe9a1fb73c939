package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/policy"
)

func newRollbackCmd(root *rootFlags) *cobra.Command {
	var (
		pf         policyFlags
		cf         confirmFlags
		rollbackTo bool
		reset      bool
	)
	cmd := &cobra.Command{
		Use:   messages.RollbackUse,
		Short: messages.RollbackShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchID := args[0]
			if cf.needsTerminal() && !isTerminal() {
				return errors.New(messages.RollbackRequiresTerminal)
			}
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			pt, err := s.tool(false)
			if err != nil {
				return err
			}
			res, err := pt.Rollback(patchID, policy.FromOptions(pf.options(s.cfg)), rollbackTo, reset)
			if err != nil {
				return err
			}
			return finishResult(cmd, res, patchID, &cf, finishMessages{
				prompt:    messages.RollbackCommitPromptFmt,
				committed: messages.RollbackCommittedFmt,
				discarded: messages.RollbackDiscardedFmt,
				dryRun:    messages.RollbackDryRunFmt,
			})
		},
	}
	pf.register(cmd)
	cf.register(cmd, messages.RollbackFlagDryRun)
	cmd.Flags().BoolVar(&rollbackTo, "rollback-to", false, messages.RollbackFlagTo)
	cmd.Flags().BoolVar(&reset, "reset-configuration", false, messages.RollbackFlagReset)
	return cmd
}
