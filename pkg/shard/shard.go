// Package shard defines the external collaborators UpsertExecutor
// consumes: the storage/translog engine and the master's schema
// update client (spec.md §6). Both are pure interfaces — the concrete
// Lucene-adjacent engine and its on-disk translog are this spec's
// Non-goals; pkg/memshard supplies a test-only implementation.
package shard

import (
	"context"

	"github.com/arkdb/shardwrite/pkg/types"
)

// ResultType is the tagged variant IndexResult carries, replacing the
// source system's exceptions-as-control-flow for version conflicts
// and mapping-update signals (spec.md §9 design note).
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultMappingUpdateRequired
)

// IndexResult is the outcome of one engine apply call (spec.md §6).
// Exactly one of the optional fields is meaningful, selected by Type:
// Failure when Type == ResultFailure, RequiredMappingUpdate when
// Type == ResultMappingUpdateRequired.
type IndexResult struct {
	Type             ResultType
	SeqNo            int64
	Version          int64
	TranslogLocation int64

	Failure               error
	RequiredMappingUpdate []byte
}

// Doc is a document loaded from the engine for the update path's
// current-value lookup (spec.md §4.4 "Document lookup").
type Doc struct {
	Source      []byte
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
}

// ShardWriteEngine is the per-shard storage/translog collaborator
// UpsertExecutor drives (spec.md §6).
type ShardWriteEngine interface {
	ApplyIndexOperationOnPrimary(ctx context.Context, version int64, versionType types.VersionType, source []byte, seqNo, primaryTerm int64, isRetry bool) (IndexResult, error)
	ApplyIndexOperationOnReplica(ctx context.Context, seqNo, version int64, source []byte) (IndexResult, error)
	GetFailedIndexResult(err error, version int64) IndexResult
	LookupDoc(ctx context.Context, id string, versionType types.VersionType, seqNo, primaryTerm int64) (*Doc, error)
}

// SchemaUpdateClient submits a mapping delta to the master and waits
// for it to be acknowledged before the executor retries (spec.md §6,
// §4.4 "Mapping-update handling").
type SchemaUpdateClient interface {
	UpdateMappingOnMaster(ctx context.Context, index string, delta []byte) error
}
