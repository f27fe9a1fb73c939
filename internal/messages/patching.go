package messages

// Patching engine messages: content model, loaders, tasks, transactions and history.
const (
	// PatchIDRequired indicates a patch without an id.
	PatchIDRequired                 = "patch id is required"
	PatchIDInvalidFmt               = "invalid patch id %q: must be a single path component"
	PatchIdentityNameRequired       = "patch identity name is required"
	PatchIdentityVersionRequired    = "patch identity version is required"
	PatchTypeInvalidFmt             = "invalid patch type %q (expected one-off or cumulative)"
	PatchResultingVersionRequired   = "cumulative patches require identity.resulting-version"
	PatchElementIDRequiredFmt       = "element %d of patch %s requires an id"
	PatchElementIDDuplicateFmt      = "duplicate element id %q in patch %s"
	PatchElementProviderFmt         = "element %s must name exactly one layer or add-on"
	PatchElementMiscFmt             = "element %s: misc content %s belongs to the patch, not to a layer or add-on"
	PatchTopLevelContentFmt         = "patch %s: %s content %s must be declared in a layer or add-on element"
	PatchDuplicateItemFmt           = "duplicate modification for %s in %s"
	PatchOverlappingItemsFmt        = "modifications for %s and %s overlap in %s"
	PatchContentTypeInvalidFmt      = "invalid content type %q (expected module, bundle or misc)"
	PatchModificationTypeInvalid    = "invalid modification type %q (expected add, modify or remove)"
	PatchItemNameRequired           = "content item name is required"
	PatchItemPathInvalidFmt         = "invalid content path %q"
	PatchItemDirectoryMiscOnly      = "only misc content can be a directory"
	PatchItemIDInvalidFmt           = "invalid content item id %q"
	PatchTargetHashRequiredFmt      = "%s %s requires a target hash"
	PatchExpectedHashRequiredFmt    = "%s %s requires an expected hash"
	PatchExpectedHashForbiddenFmt   = "add %s must not declare an expected hash"
	PatchHashInvalidFmt             = "invalid hash %q for %s: %w"
	PatchMetadataReadFmt            = "failed to read patch metadata %s: %w"
	PatchMetadataInvalidFmt         = "invalid patch metadata %s: %w"
	PatchMetadataUnknownKeysFmt     = "patch metadata %s contains unrecognized keys: %w"
	PatchContentNotFoundFmt         = "content %s not found at %s"
	PatchConflictFmt                = "content conflict at %s (%s): expected %s, found %s"
	PatchConflictMoreFmt            = "%s (and %d more conflicting item(s))"
	PatchConflictDetailFmt          = "content conflict at %s (%s): %s"
	PatchDirectoryNotEmptyFmt       = "directory still holds %s"
	PatchingFailedFmt               = "patching failed: %s %s: %v"
	PatchHistoryInconsistentFmt     = "cannot roll back %s on %s: most recent patch is %s"
	PatchHistoryInconsistentEmpty   = "cannot roll back %s on %s: target has no applied patches"
	PatchAlreadyAppliedFmt          = "%w: %s"
	PatchNotAppliedFmt              = "%w: %s"
	PatchIdentityMismatchFmt        = "%w: patch %s targets %s %s, installation is %s %s"
	PatchUnknownTargetFmt           = "%w: %s (element %s)"
	PatchHashNone                   = "<none>"
	PatchContentHashMismatchFmt     = "content hash mismatch: expected %s, wrote %s"
	PatchUnsupportedFileTypeFmt     = "unsupported file type at %s"
	HashLengthFmt                   = "hash must be %d bytes, got %d"
	HashDirectoryNotHashable        = "non-empty directory has no content hash"
	PatchDirectoryNotRemovedFmt     = "directory %s was not fully removed"
	PatchSourceNotDirectoryFmt      = "module content %s is not a directory"
	PatchLoaderRootRequiredFmt      = "no %s root configured for %s"
	PatchLoaderOutsideRootFmt       = "content %s resolves outside %s"
	TaskUnknownKindFmt              = "unknown task kind %d"
	TaskNotPreparedFmt              = "task for %s executed before prepare"
	PolicyDecisionInvalidFmt        = "invalid policy decision %q"
	IdentityReadFmt                 = "failed to read installed identity %s: %w"
	IdentityDecodeFmt               = "decode installed identity %s: %w"
	IdentityValidateFmt             = "validate installed identity %s: %w"
	IdentityWriteFmt                = "failed to write installed identity %s: %w"
	IdentityPopMismatchFmt          = "cannot pop %s from %s: most recent patch is %q"
	RecordReadFmt                   = "failed to read history record %s: %w"
	RecordDecodeFmt                 = "decode history record %s: %w"
	RecordValidateFmt               = "validate history record %s: %w"
	RecordWriteFmt                  = "failed to write history record %s: %w"
	RecordPatchIDMismatchFmt        = "history record %s belongs to patch %q"
	StoreCreateDirFmt               = "failed to create directory %s: %w"
	StoreLeftoverBackupFmt          = "backup directory %s already exists; a previous operation on %s did not finish. Inspect or remove it before retrying"
	ToolInvalidTransitionFmt        = "invalid transaction transition %s from state %s"
	ToolStoreRequired               = "patch tool requires a history store"
	ToolLockFmt                     = "failed to lock installation: %w"
	ToolExecuteFailedFmt            = "patch %s failed during execute; backups kept under %s: %w"
	ToolAutoUndoFailedFmt           = "patch %s failed during execute (%w); undo failed: %v"
	ToolConfigurationBackupFmt      = "failed to back up configuration %s: %w"
	ToolConfigurationRestoreFmt     = "failed to restore configuration %s: %w"
	ToolConfigurationNotRecordedFmt = "patch %s has no configuration backup to restore"
	ToolResultNotExecutedFmt        = "result for %s is %s; only executed results can be committed or discarded"
	ToolCommitFailedFmt             = "commit of %s failed: %w"
	ToolDiscardFailedFmt            = "discard of %s failed: %w"
	HistoryValidationFailedFmt      = "patch %s: %s state is inconsistent: %v"
	HistoryIteratorExhausted        = "patch history iterator is exhausted"
	HistoryBackupMissingFmt         = "backup for %s is missing at %s"
	HistoryBackupHashMismatchFmt    = "backup for %s at %s hashes to %s, recorded %s"
	HistoryElementNotInTargetFmt    = "element %s is not recorded in %s history"
	HistoryConfigurationMissingFmt  = "configuration backup recorded but missing at %s"
	FsLockOpenFmt                   = "failed to open lock file %s: %w"
	FsLockTimeoutFmt                = "timed out after %s waiting for installation lock %s"
	FsLockFmt                       = "failed to lock %s: %w"
	FsLockBusy                      = "lock is held by another process"
)
