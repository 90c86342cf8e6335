package upsert

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/mapping"
	"github.com/arkdb/shardwrite/pkg/memshard"
	"github.com/arkdb/shardwrite/pkg/shard"
	"github.com/arkdb/shardwrite/pkg/sourcegen"
	"github.com/arkdb/shardwrite/pkg/types"
	"github.com/arkdb/shardwrite/pkg/wire"
)

type testRegistry struct{}

func (testRegistry) Resolve(ref mapping.AnalyzerRef) (mapping.Analyzer, bool) {
	return mapping.NamedAnalyzer(ref), ref != ""
}
func (testRegistry) Default() mapping.Analyzer { return mapping.NamedAnalyzer("standard") }

func buildTable(t *testing.T, fields []mapping.RawField, pk []string) *sourcegen.Table {
	t.Helper()
	svc, err := mapping.NewMappingService("t_idx", mapping.DefaultSettings(), testRegistry{}, nil)
	if err != nil {
		t.Fatalf("NewMappingService: %v", err)
	}
	installed, err := svc.Merge(mapping.RawMapping{TypeName: "_doc", Root: mapping.RawObject{Fields: fields}}, mapping.MergeUpdate)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return &sourcegen.Table{Name: "t_idx", Mapping: installed, PrimaryKey: pk}
}

type noopSchemaClient struct{}

func (noopSchemaClient) UpdateMappingOnMaster(ctx context.Context, index string, delta []byte) error {
	return nil
}

func newTestExecutor(t *testing.T, engine *memshard.Engine, table *sourcegen.Table) *UpsertExecutor {
	t.Helper()
	return NewUpsertExecutor("t_idx", engine, noopSchemaClient{}, table, nil, nil)
}

func insertRequest(id, name string, action wire.DuplicateKeyAction, assignments []sourcegen.Assignment) *wire.Request {
	return &wire.Request{
		ShardID:       "shard-0",
		JobID:         "job-1",
		InsertColumns: []wire.Reference{{Name: "_id", Type: types.TypeVarchar}, {Name: "name", Type: types.TypeVarchar}},
		Mode:          wire.Mode{DuplicateKeyAction: action},
		Items: []wire.Item{
			{
				ID:                id,
				Version:           types.MatchAny,
				SeqNo:             types.UnassignedSeqNo,
				PrimaryTerm:       types.UnassignedSeqNo,
				InsertValues:      []types.Comparable{types.VarcharValue(id), types.VarcharValue(name)},
				UpdateAssignments: assignments,
			},
		},
	}
}

func seedDoc(t *testing.T, engine *memshard.Engine, id, name string) {
	t.Helper()
	if err := engine.Seed(id, bson.D{{Key: "_id", Value: id}, {Key: "name", Value: name}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

// scenario 4: insert with DUPLICATE_KEY_OVERWRITE on an existing id
// succeeds in place of failing.
func TestExecute_InsertOverwriteExistingID(t *testing.T) {
	table := buildTable(t, []mapping.RawField{{Name: "name", Type: types.TypeVarchar}}, nil)
	engine := memshard.NewEngine()
	seedDoc(t, engine, "doc-1", "old-name")

	ex := newTestExecutor(t, engine, table)
	req := insertRequest("doc-1", "new-name", wire.DuplicateKeyOverwrite, nil)

	resp, err := ex.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Failure != nil || resp.Items[0].Skipped {
		t.Fatalf("expected overwrite to succeed, got %+v", resp.Items)
	}
	if resp.Items[0].Version != 2 {
		t.Errorf("expected version 2 after overwrite, got %d", resp.Items[0].Version)
	}
}

// scenario 5: insert conflicts against an existing id, but the item
// carries update assignments, so the executor falls back to the
// update path instead of failing outright.
func TestExecute_InsertThenUpdateFallback(t *testing.T) {
	table := buildTable(t, []mapping.RawField{{Name: "name", Type: types.TypeVarchar}}, nil)
	engine := memshard.NewEngine()
	seedDoc(t, engine, "doc-1", "old-name")

	ex := newTestExecutor(t, engine, table)
	req := insertRequest("doc-1", "ignored-on-fallback", wire.DuplicateKeyUpdateOrFail, []sourcegen.Assignment{
		{Column: "name", Expression: sourcegen.Literal{Value: "patched-name"}},
	})

	resp, err := ex.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Failure != nil {
		t.Fatalf("expected fallback update to succeed, got %+v", resp.Items)
	}

	doc, err := engine.LookupDoc(context.Background(), "doc-1", types.VersionTypeInternal, types.UnassignedSeqNo, types.UnassignedSeqNo)
	if err != nil {
		t.Fatalf("LookupDoc: %v", err)
	}
	if doc == nil {
		t.Fatalf("expected doc-1 to still exist")
	}
	parsed, err := sourcegen.ParseCanonicalJSON(doc.Source)
	if err != nil {
		t.Fatalf("ParseCanonicalJSON: %v", err)
	}
	found := false
	for _, e := range parsed {
		if e.Key == "name" && e.Value == "patched-name" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected patched-name in updated document, got %v", parsed)
	}
}

// scenario 6: a blind update that always conflicts is attempted
// MaxRetryLimit times, then fails with the last conflict.
func TestExecute_RetryExhaustion(t *testing.T) {
	table := buildTable(t, []mapping.RawField{{Name: "name", Type: types.TypeVarchar}}, nil)
	engine := memshard.NewEngine()
	seedDoc(t, engine, "doc-1", "existing-name")
	engine.FailAlways = &mapperrors.VersionConflictError{ID: "doc-1", Expected: types.MatchAny, Actual: 7}

	ex := newTestExecutor(t, engine, table)
	req := &wire.Request{
		ShardID:       "shard-0",
		JobID:         "job-1",
		UpdateColumns: []string{"name"},
		InsertColumns: []wire.Reference{{Name: "_id", Type: types.TypeVarchar}},
		Items: []wire.Item{
			{
				ID:          "doc-1",
				Version:     types.MatchAny,
				SeqNo:       types.UnassignedSeqNo,
				PrimaryTerm: types.UnassignedSeqNo,
				UpdateAssignments: []sourcegen.Assignment{
					{Column: "name", Expression: sourcegen.Literal{Value: "whatever"}},
				},
			},
		},
	}

	resp, err := ex.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected one item outcome, got %d", len(resp.Items))
	}
	if resp.Items[0].Failure == nil {
		t.Fatalf("expected retry exhaustion to surface as a failure")
	}
	var fail *mapperrors.Failure
	if f, ok := resp.Items[0].Failure.(*mapperrors.Failure); ok {
		fail = f
	}
	if fail == nil {
		t.Fatalf("expected *Failure, got %T", resp.Items[0].Failure)
	}
	if !fail.IsVersionConflict {
		t.Errorf("expected the exhausted retry to be flagged as a version conflict")
	}
}

// Continue-on-error: a failing item does not stop the batch, and its
// source is nulled so the replica path skips it.
func TestExecute_ContinueOnErrorNullsSource(t *testing.T) {
	table := buildTable(t, []mapping.RawField{{Name: "name", Type: types.TypeVarchar, Required: true}}, nil)
	engine := memshard.NewEngine()
	ex := newTestExecutor(t, engine, table)

	req := &wire.Request{
		ShardID:       "shard-0",
		JobID:         "job-1",
		InsertColumns: []wire.Reference{{Name: "_id", Type: types.TypeVarchar}, {Name: "name", Type: types.TypeVarchar}},
		Mode:          wire.Mode{ContinueOnError: true, DuplicateKeyAction: wire.DuplicateKeyOverwrite},
		Items: []wire.Item{
			{ID: "bad", Version: types.MatchAny, SeqNo: types.UnassignedSeqNo, PrimaryTerm: types.UnassignedSeqNo,
				InsertValues: []types.Comparable{types.VarcharValue("bad"), nil}},
			{ID: "good", Version: types.MatchAny, SeqNo: types.UnassignedSeqNo, PrimaryTerm: types.UnassignedSeqNo,
				InsertValues: []types.Comparable{types.VarcharValue("good"), types.VarcharValue("ok")}},
		},
	}

	resp, err := ex.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected both items to be processed, got %d", len(resp.Items))
	}
	if resp.Items[0].Failure == nil {
		t.Errorf("expected first item (missing required name) to fail")
	}
	if req.Items[0].Source != nil {
		t.Errorf("expected failed item's source to be nulled")
	}
	if resp.Items[1].Failure != nil {
		t.Errorf("expected second item to succeed: %+v", resp.Items[1])
	}
	if resp.BatchFailure != nil {
		t.Errorf("continue-on-error should not set BatchFailure, got %v", resp.BatchFailure)
	}
}

// replica path: items with a nil source are skipped silently.
func TestReplicaExecutor_SkipsNilSource(t *testing.T) {
	engine := memshard.NewEngine()
	re := NewReplicaExecutor("t_idx", engine)

	req := &wire.Request{
		Items: []wire.Item{
			{ID: "skip-me", Source: nil},
		},
	}

	resp, err := re.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Items) != 1 || !resp.Items[0].Skipped {
		t.Fatalf("expected the nil-source item to be skipped, got %+v", resp.Items)
	}
}

// replica path: MAPPING_UPDATE_REQUIRED is surfaced as a
// RetryOnReplicaError carrying the mapping delta.
func TestReplicaExecutor_MappingUpdateRequired(t *testing.T) {
	engine := memshard.NewEngine()
	engine.SetNextResult(shard.IndexResult{
		Type:                  shard.ResultMappingUpdateRequired,
		RequiredMappingUpdate: []byte(`{"properties":{"new":{"type":"varchar"}}}`),
	})
	re := NewReplicaExecutor("t_idx", engine)

	req := &wire.Request{
		Items: []wire.Item{
			{ID: "doc-1", Source: []byte(`{"_id":"doc-1"}`)},
		},
	}

	resp, err := re.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.BatchFailure == nil {
		t.Fatalf("expected a retry-on-replica batch failure")
	}
	var retryErr *mapperrors.RetryOnReplicaError
	if re, ok := resp.BatchFailure.(*mapperrors.RetryOnReplicaError); ok {
		retryErr = re
	}
	if retryErr == nil {
		t.Fatalf("expected *RetryOnReplicaError, got %T", resp.BatchFailure)
	}
}
