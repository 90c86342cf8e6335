// Package memshard is a from-scratch in-memory ShardWriteEngine used
// by pkg/upsert's tests: a minimal single-shard
// document store with the same version/seqNo/primaryTerm bookkeeping
// the real engine (this spec's Non-goal, per spec.md §2) would
// maintain, keyed by document id rather than a B+tree offset.
package memshard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	upsertgeneric "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/shard"
	"github.com/arkdb/shardwrite/pkg/sourcegen"
	"github.com/arkdb/shardwrite/pkg/types"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type docRecord struct {
	source      []byte
	version     int64
	seqNo       int64
	primaryTerm int64
	deleted     bool
}

// Engine is a single-shard in-memory document store. The seqNo and
// translog-location counters are atomic, generalized from the
// teacher's LSNTracker (pkg/storage/lsn_tracker.go) from a single WAL
// offset counter to two independent monotonic counters.
type Engine struct {
	mu          sync.Mutex
	docs        map[string]*docRecord
	seqNo       uint64
	translog    uint64
	primaryTerm int64

	// nextOverride lets a test script exactly one apply result, primary
	// or replica (typically MAPPING_UPDATE_REQUIRED), before normal
	// behavior resumes.
	nextOverride *shard.IndexResult

	// FailAlways, when set, makes every ApplyIndexOperationOnPrimary
	// call return this failure — used to exercise retry exhaustion.
	FailAlways error
}

// NewEngine builds an empty Engine at primary term 1.
func NewEngine() *Engine {
	return &Engine{docs: make(map[string]*docRecord), primaryTerm: 1}
}

// SetNextResult scripts the result of the next ApplyIndexOperationOnPrimary
// or ApplyIndexOperationOnReplica call, consumed once.
func (e *Engine) SetNextResult(r shard.IndexResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextOverride = &r
}

func (e *Engine) takeOverride() *shard.IndexResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.nextOverride
	e.nextOverride = nil
	return r
}

func (e *Engine) nextSeqNo() int64 {
	return int64(atomic.AddUint64(&e.seqNo, 1)) - 1
}

func (e *Engine) nextTranslogLocation() int64 {
	return int64(atomic.AddUint64(&e.translog, 1))
}

func extractID(source []byte) (string, error) {
	doc, err := sourcegen.ParseCanonicalJSON(source)
	if err != nil {
		return "", err
	}
	for _, elem := range doc {
		if elem.Key != "_id" {
			continue
		}
		if id, ok := elem.Value.(string); ok {
			return id, nil
		}
		return "", fmt.Errorf("_id field is not a string: %v", elem.Value)
	}
	return "", fmt.Errorf("document has no _id field")
}

// ApplyIndexOperationOnPrimary implements shard.ShardWriteEngine.
func (e *Engine) ApplyIndexOperationOnPrimary(ctx context.Context, version int64, versionType types.VersionType, source []byte, seqNo, primaryTerm int64, isRetry bool) (shard.IndexResult, error) {
	if override := e.takeOverride(); override != nil {
		return *override, nil
	}
	if e.FailAlways != nil {
		return shard.IndexResult{Type: shard.ResultFailure, Failure: e.FailAlways}, nil
	}

	id, err := extractID(source)
	if err != nil {
		return shard.IndexResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.docs[id]

	var conflict bool
	switch {
	case version == types.MatchDeleted:
		conflict = existing != nil && !existing.deleted
	case version == types.MatchAny:
		if seqNo != types.UnassignedSeqNo {
			conflict = existing == nil || existing.deleted || existing.seqNo != seqNo || existing.primaryTerm != primaryTerm
		}
	default:
		conflict = existing == nil || existing.deleted || existing.version != version
	}

	if conflict {
		actual := int64(-1)
		if existing != nil {
			actual = existing.version
		}
		return shard.IndexResult{
			Type:    shard.ResultFailure,
			Failure: &upsertgeneric.VersionConflictError{ID: id, Expected: version, Actual: actual},
		}, nil
	}

	newVersion := int64(1)
	if existing != nil {
		newVersion = existing.version + 1
	}
	newSeqNo := e.nextSeqNo()
	newLocation := e.nextTranslogLocation()

	e.docs[id] = &docRecord{
		source:      source,
		version:     newVersion,
		seqNo:       newSeqNo,
		primaryTerm: e.primaryTerm,
	}

	return shard.IndexResult{
		Type:             shard.ResultSuccess,
		SeqNo:            newSeqNo,
		Version:          newVersion,
		TranslogLocation: newLocation,
	}, nil
}

// ApplyIndexOperationOnReplica implements shard.ShardWriteEngine. The
// replica trusts the primary's version/seqNo assignment; it does not
// re-run conflict detection (spec.md §4.5).
func (e *Engine) ApplyIndexOperationOnReplica(ctx context.Context, seqNo, version int64, source []byte) (shard.IndexResult, error) {
	if override := e.takeOverride(); override != nil {
		return *override, nil
	}
	id, err := extractID(source)
	if err != nil {
		return shard.IndexResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[id] = &docRecord{
		source:      source,
		version:     version,
		seqNo:       seqNo,
		primaryTerm: e.primaryTerm,
	}

	return shard.IndexResult{
		Type:             shard.ResultSuccess,
		SeqNo:            seqNo,
		Version:          version,
		TranslogLocation: e.nextTranslogLocation(),
	}, nil
}

// GetFailedIndexResult implements shard.ShardWriteEngine.
func (e *Engine) GetFailedIndexResult(err error, version int64) shard.IndexResult {
	return shard.IndexResult{Type: shard.ResultFailure, Version: version, Failure: err}
}

// LookupDoc implements shard.ShardWriteEngine. versionType, seqNo and
// primaryTerm are accepted for interface compatibility but unused by
// this in-memory double: it always returns the document's live state.
func (e *Engine) LookupDoc(ctx context.Context, id string, versionType types.VersionType, seqNo, primaryTerm int64) (*shard.Doc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.docs[id]
	if existing == nil || existing.deleted {
		return nil, nil
	}
	return &shard.Doc{
		Source:      existing.source,
		Version:     existing.version,
		SeqNo:       existing.seqNo,
		PrimaryTerm: existing.primaryTerm,
	}, nil
}

// Seed installs a document directly, bypassing version checks, for
// test setup.
func (e *Engine) Seed(id string, row bson.D) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	encoded, encErr := bson.MarshalExtJSON(row, false, false)
	if encErr != nil {
		return encErr
	}
	e.docs[id] = &docRecord{
		source:      encoded,
		version:     1,
		seqNo:       e.nextSeqNo(),
		primaryTerm: e.primaryTerm,
	}
	return nil
}
