package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/config"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/patch"
	"github.com/conn-castle/patchtool/internal/policy"
)

// policyFlags are the conflict policy flags shared by apply, plan and rollback.
type policyFlags struct {
	overrideAll     bool
	overrideModules bool
	override        []string
	preserve        []string
}

func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.overrideAll, "override-all", false, messages.PolicyFlagOverrideAll)
	cmd.Flags().BoolVar(&f.overrideModules, "override-modules", false, messages.PolicyFlagOverrideModules)
	cmd.Flags().StringArrayVar(&f.override, "override", nil, messages.PolicyFlagOverride)
	cmd.Flags().StringArrayVar(&f.preserve, "preserve", nil, messages.PolicyFlagPreserve)
}

// options merges the flags into the configured defaults.
func (f *policyFlags) options(cfg *config.Config) policy.Options {
	opts := cfg.PolicyOptions()
	opts.OverrideAll = opts.OverrideAll || f.overrideAll
	opts.OverrideModules = opts.OverrideModules || f.overrideModules
	opts.Override = append(opts.Override, f.override...)
	opts.Preserve = append(opts.Preserve, f.preserve...)
	return opts
}

// confirmFlags control whether an executed result is committed.
type confirmFlags struct {
	dryRun bool
	yes    bool
}

func (f *confirmFlags) register(cmd *cobra.Command, dryRunUsage string) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, dryRunUsage)
	cmd.Flags().BoolVar(&f.yes, "yes", false, messages.ApplyFlagYes)
}

// needsTerminal reports whether committing requires asking the user.
func (f *confirmFlags) needsTerminal() bool {
	return !f.dryRun && !f.yes
}

// decide returns whether to commit: never on a dry run, always with --yes,
// otherwise the user's answer.
func (f *confirmFlags) decide(cmd *cobra.Command, prompt string) (bool, error) {
	if f.dryRun {
		return false, nil
	}
	if f.yes {
		return true, nil
	}
	return promptYesNo(cmd.InOrStdin(), cmd.OutOrStdout(), prompt, true)
}

// promptYesNo asks a yes/no question, retrying on unrecognized input.
func promptYesNo(in io.Reader, out io.Writer, prompt string, defaultYes bool) (bool, error) {
	reader := bufio.NewReader(in)
	for {
		format := messages.PromptNoDefaultFmt
		if defaultYes {
			format = messages.PromptYesDefaultFmt
		}
		if _, err := fmt.Fprintf(out, format, prompt); err != nil {
			return false, err
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		response := strings.TrimSpace(line)
		if response == "" {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return defaultYes, nil
		}
		switch strings.ToLower(response) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			return false, fmt.Errorf(messages.PromptInvalidResponse, response)
		}
		if _, err := fmt.Fprintln(out, messages.PromptRetryYesNo); err != nil {
			return false, err
		}
	}
}

// printModifications lists applied and preserved modifications.
func printModifications(out io.Writer, applied, preserved []patch.ContentModification) {
	for _, mod := range applied {
		_, _ = fmt.Fprintf(out, messages.ApplyModificationFmt, strings.ToLower(string(mod.Type)), mod.Item.ID())
	}
	for _, mod := range preserved {
		_, _ = fmt.Fprintf(out, messages.ApplyPreservedFmt, strings.ToLower(string(mod.Type)), mod.Item.ID())
	}
}
