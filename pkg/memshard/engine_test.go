package memshard_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/arkdb/shardwrite/pkg/memshard"
	"github.com/arkdb/shardwrite/pkg/shard"
	"github.com/arkdb/shardwrite/pkg/types"
)

func canonical(t *testing.T, row bson.D) []byte {
	t.Helper()
	out, err := bson.MarshalExtJSON(row, false, false)
	if err != nil {
		t.Fatalf("MarshalExtJSON: %v", err)
	}
	return out
}

func TestEngine_InsertThenLookup(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()

	source := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}, {Key: "name", Value: "alice"}})
	result, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnPrimary: %v", err)
	}
	if result.Type != shard.ResultSuccess || result.Version != 1 {
		t.Fatalf("expected first insert to succeed at version 1, got %+v", result)
	}

	doc, err := e.LookupDoc(ctx, "doc-1", types.VersionTypeInternal, types.UnassignedSeqNo, types.UnassignedSeqNo)
	if err != nil {
		t.Fatalf("LookupDoc: %v", err)
	}
	if doc == nil || doc.Version != 1 {
		t.Fatalf("expected doc-1 at version 1, got %+v", doc)
	}
}

func TestEngine_MatchDeletedRejectsExistingDoc(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()
	source := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}, {Key: "name", Value: "alice"}})

	if _, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	result, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnPrimary: %v", err)
	}
	if result.Type != shard.ResultFailure {
		t.Fatalf("expected second MATCH_DELETED insert to conflict, got %+v", result)
	}
}

func TestEngine_SeqNoMismatchConflicts(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()
	source := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}, {Key: "name", Value: "alice"}})
	if _, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	updated := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}, {Key: "name", Value: "bob"}})
	result, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchAny, types.VersionTypeInternal, updated, 999, 999, true)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnPrimary: %v", err)
	}
	if result.Type != shard.ResultFailure {
		t.Fatalf("expected stale seqNo/primaryTerm to conflict, got %+v", result)
	}
}

func TestEngine_ReplicaApplyTrustsAssignment(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()
	source := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}, {Key: "name", Value: "alice"}})

	result, err := e.ApplyIndexOperationOnReplica(ctx, 5, 1, source)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnReplica: %v", err)
	}
	if result.Type != shard.ResultSuccess || result.SeqNo != 5 || result.Version != 1 {
		t.Fatalf("expected replica apply to adopt the given seqNo/version, got %+v", result)
	}
}

func TestEngine_ScriptedMappingUpdateResult(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()
	e.SetNextResult(shard.IndexResult{Type: shard.ResultMappingUpdateRequired, RequiredMappingUpdate: []byte("delta")})

	source := canonical(t, bson.D{{Key: "_id", Value: "doc-1"}})
	result, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnPrimary: %v", err)
	}
	if result.Type != shard.ResultMappingUpdateRequired || string(result.RequiredMappingUpdate) != "delta" {
		t.Fatalf("expected the scripted mapping-update result, got %+v", result)
	}

	// the override is consumed exactly once
	result, err = e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false)
	if err != nil {
		t.Fatalf("ApplyIndexOperationOnPrimary: %v", err)
	}
	if result.Type != shard.ResultSuccess {
		t.Fatalf("expected normal behavior to resume after the scripted result, got %+v", result)
	}
}

func TestEngine_MissingIDIsRejected(t *testing.T) {
	e := memshard.NewEngine()
	ctx := context.Background()
	source := canonical(t, bson.D{{Key: "name", Value: "no-id"}})

	if _, err := e.ApplyIndexOperationOnPrimary(ctx, types.MatchDeleted, types.VersionTypeInternal, source, types.UnassignedSeqNo, types.UnassignedSeqNo, false); err == nil {
		t.Fatalf("expected a document without _id to be rejected")
	}
}
