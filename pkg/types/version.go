package types

// Sequence numbers, primary terms and version sentinels used by the
// upsert executor's optimistic-concurrency control. Modeled after the
// teacher's LSN vocabulary (pkg/storage/lsn_tracker.go), generalized
// from "log sequence number" to "per-shard sequence number."
const (
	// UnassignedSeqNo signals "server-chosen" for seqNo/primaryTerm.
	UnassignedSeqNo int64 = -2

	// MatchAny succeeds regardless of the document's current version.
	MatchAny int64 = -3

	// MatchDeleted succeeds only if no live document exists for the id.
	MatchDeleted int64 = -4
)

// VersionType selects how a caller-supplied version is interpreted by
// the engine's optimistic-concurrency check.
type VersionType int

const (
	VersionTypeInternal VersionType = iota
	VersionTypeExternal
)
