package messages

// CLI messages for user-facing commands and prompts.
const (
	// RootUse is the CLI command name.
	RootUse = "patchtool"
	// RootShort is the short description for the root command.
	RootShort             = "Apply, roll back and verify patches on a software installation"
	RootFlagHome          = "Installation home directory (defaults to $PATCHTOOL_HOME or the current directory)"
	RootFlagConfig        = "Path to patchtool.toml (defaults to <home>/.installation/patchtool.toml)"
	RootFlagLogLevel      = "Log level override (debug, info, warn, error)"
	RootResolveHomeFmt    = "resolve installation home %q: %w"
	RootHomeNotDirFmt     = "installation home %s is not a directory"
	RootNotInitializedFmt = "installation %s has no recorded identity and %s has no [installation] section; run `patchtool config set installation.name <name>` (plus version and layers) first"
	RootHomeEnvVar        = "PATCHTOOL_HOME"

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	// ApplyUse is the apply command usage.
	ApplyUse               = "apply <patch-dir>"
	ApplyShort             = "Apply a patch archive to the installation"
	ApplyFlagDryRun        = "Apply, print the result, then undo without recording history"
	ApplyFlagYes           = "Commit without asking for confirmation"
	ApplyFlagAutoUndo      = "Undo already executed steps when execution fails"
	ApplyRequiresTerminal  = "apply asks for confirmation before committing; run in an interactive terminal or pass --yes"
	ApplyCommitPromptFmt   = "Commit patch %s?"
	ApplyCommittedFmt      = "Patch %s applied (%d modification(s), %d preserved).\n"
	ApplyDiscardedFmt      = "Patch %s was not committed; the installation was restored.\n"
	ApplyDryRunFmt         = "Dry run: patch %s applied cleanly and was undone.\n"
	ApplyModificationFmt   = "  %-6s %s\n"
	ApplyPreservedFmt      = "  %-6s %s (preserved)\n"
	ApplyRollbackHeaderFmt = "Rollback patch %s records %d modification(s).\n"

	// PlanUse is the plan command usage.
	PlanUse           = "plan <patch-dir>"
	PlanShort         = "Show what applying a patch would do without changing the installation"
	PlanFlagDiff      = "Show unified diffs for conflicting misc files"
	PlanFlagDiffLines = "Maximum diff lines shown per file"
	PlanFlagJSON      = "Print the plan as JSON"
	PlanHeaderFmt     = "Plan for patch %s (dry run, nothing was written):\n"
	PlanTaskFmt       = "  %-6s %-48s %s\n"
	PlanNoTasks       = "  (no relevant modifications)"
	PlanWouldFail     = "Applying this patch with the selected policy would fail."
	PlanRefusedFmt    = "  conflict: %s\n"
	PlanDiffHeaderFmt = "\nDiff for %s:\n"

	// RollbackUse is the rollback command usage.
	RollbackUse              = "rollback <patch-id>"
	RollbackShort            = "Roll back an applied patch"
	RollbackFlagTo           = "Roll back every patch applied after <patch-id> as well"
	RollbackFlagDryRun       = "Roll back, print the result, then undo without recording history"
	RollbackFlagReset        = "Restore the configuration captured when the patch was applied"
	RollbackCommittedFmt     = "Rolled back %s (%d modification(s), %d preserved).\n"
	RollbackDryRunFmt        = "Dry run: rollback of %s executed cleanly and was undone.\n"
	RollbackDiscardedFmt     = "Rollback of %s was not committed; the installation was restored.\n"
	RollbackCommitPromptFmt  = "Commit rollback of %s?"
	RollbackRequiresTerminal = "rollback asks for confirmation before committing; run in an interactive terminal or pass --yes"

	// HistoryUse is the history command usage.
	HistoryUse           = "history"
	HistoryShort         = "List applied patches, most recent first"
	HistoryFlagFormat    = "Output format: text, json or yaml"
	HistoryFormatFmt     = "unsupported format %q (supported: text, json, yaml)"
	HistoryEmpty         = "No patches applied."
	HistoryEntryFmt      = "%s  %-10s  %s  %s\n"
	HistoryElementFmt    = "    %s -> %s\n"
	HistoryIdentityFmt   = "%s %s\n"
	HistoryUnreadableFmt = "%s  (history record unreadable: %v)\n"

	// VerifyUse is the verify command usage.
	VerifyUse          = "verify"
	VerifyShort        = "Check that every applied patch can still be rolled back"
	VerifyOKLabel      = "[OK]"
	VerifyFailLabel    = "[FAIL]"
	VerifyLineFmt      = "%s %s\n"
	VerifyProblemFmt   = "    %v\n"
	VerifyEmpty        = "No patches applied; nothing to verify."
	VerifySuccess      = "History is consistent."
	VerifyFailure      = "History has inconsistencies."
	VerifyFailedErrFmt = "%d patch(es) failed verification"

	// ConfigUse is the config command usage.
	ConfigUse        = "config"
	ConfigShort      = "Inspect or edit patchtool.toml"
	ConfigSetUse     = "set <key> <value>"
	ConfigSetShort   = "Set a configuration key (lists are comma separated)"
	ConfigShowUse    = "show"
	ConfigShowShort  = "Print the effective configuration"
	ConfigSetDoneFmt = "Set %s in %s\n"
	ConfigSetKeysFmt = "settable keys: %s"

	// PolicyFlagOverrideAll is the --override-all flag description.
	PolicyFlagOverrideAll     = "Override every conflicting item"
	PolicyFlagOverrideModules = "Override conflicting modules and bundles"
	PolicyFlagOverride        = "Override a specific conflicting item (repeatable)"
	PolicyFlagPreserve        = "Keep the installed version of a specific item (repeatable)"
	PolicyFlagInteractive     = "Ask how to resolve each conflict"

	// PromptYesDefaultFmt formats yes/no prompts with yes as default.
	PromptYesDefaultFmt   = "%s [Y/n]: "
	PromptNoDefaultFmt    = "%s [y/N]: "
	PromptInvalidResponse = "invalid response %q"
	PromptRetryYesNo      = "Please enter y or n."

	// PromptRequiresTerminal indicates interactive conflict resolution without a terminal.
	PromptRequiresTerminal = "interactive conflict resolution requires an interactive terminal"
	PromptConflictTitleFmt = "%s differs from what patch expects. How should it be handled?"
	PromptOptionOverride   = "override"
	PromptOptionPreserve   = "preserve"
	PromptOptionFail       = "fail"
	PromptCancelled        = "prompt cancelled"

	// PreviewBinaryFmt replaces diffs of binary content.
	PreviewBinaryFmt    = "(binary content of %s differs)"
	PreviewTruncatedFmt = "... (truncated to %d lines; rerun with --diff-lines <n> to see more)"
	PreviewReadFmt      = "failed to read %s for preview: %w"
)
