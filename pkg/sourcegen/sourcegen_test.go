package sourcegen

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/mapping"
	"github.com/arkdb/shardwrite/pkg/types"
)

type testRegistry struct{}

func (testRegistry) Resolve(ref mapping.AnalyzerRef) (mapping.Analyzer, bool) {
	return mapping.NamedAnalyzer(ref), ref != ""
}
func (testRegistry) Default() mapping.Analyzer { return mapping.NamedAnalyzer("standard") }

func buildMapping(t *testing.T, fields []mapping.RawField) *mapping.DocumentMapping {
	t.Helper()
	svc, err := mapping.NewMappingService("t_idx", mapping.DefaultSettings(), testRegistry{}, nil)
	if err != nil {
		t.Fatalf("NewMappingService: %v", err)
	}
	installed, err := svc.Merge(mapping.RawMapping{TypeName: "_doc", Root: mapping.RawObject{Fields: fields}}, mapping.MergeUpdate)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return installed
}

func TestInsertSourceGen_NotNull(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "id", Type: types.TypeInt, Required: true},
		{Name: "name", Type: types.TypeVarchar, Required: true},
	})
	table := &Table{Name: "t", Mapping: m, PrimaryKey: []string{"id"}}
	gen := &InsertSourceGen{Table: table, Columns: []string{"id", "name"}}

	if _, err := gen.Generate([]interface{}{int64(1), nil}); err == nil {
		t.Fatalf("expected NOT NULL violation for missing name")
	}

	out, err := gen.Generate([]interface{}{int64(1), "alice"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(out), "alice") {
		t.Errorf("expected output to contain the inserted value, got %s", out)
	}
}

func TestInsertSourceGen_ImplicitNotNullOnPrimaryKey(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "id", Type: types.TypeInt},
	})
	table := &Table{Name: "t", Mapping: m, PrimaryKey: []string{"id"}}
	gen := &InsertSourceGen{Table: table, Columns: []string{"id"}}

	if _, err := gen.Generate([]interface{}{nil}); err == nil {
		t.Fatalf("expected implicit NOT NULL on primary key to be enforced")
	}
}

func TestInsertSourceGen_ValueMatchValidation(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "id", Type: types.TypeInt, Required: true},
		{Name: "computed", Type: types.TypeVarchar, Generated: true, GeneratedExpr: "fixed-value"},
	})
	table := &Table{Name: "t", Mapping: m}
	gen := &InsertSourceGen{Table: table, Columns: []string{"id", "computed"}, Validation: ValidationValueMatch}

	if _, err := gen.Generate([]interface{}{int64(1), "wrong-value"}); err == nil {
		t.Fatalf("expected VALUE_MATCH failure for mismatched generated column")
	}
	var cv *mapperrors.ConstraintViolationError
	_, err := gen.Generate([]interface{}{int64(1), "wrong-value"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errorsAs(err, &cv) {
		t.Errorf("expected a *ConstraintViolationError, got %T: %v", err, err)
	}

	if _, err := gen.Generate([]interface{}{int64(1), "fixed-value"}); err != nil {
		t.Errorf("expected matching generated value to be accepted: %v", err)
	}
}

func errorsAs(err error, target **mapperrors.ConstraintViolationError) bool {
	if cv, ok := err.(*mapperrors.ConstraintViolationError); ok {
		*target = cv
		return true
	}
	return false
}

func TestInsertSourceGen_DefaultFilledBeforeNotNull(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "status", Type: types.TypeVarchar, Required: true, HasDefault: true, DefaultExpr: "active"},
	})
	table := &Table{Name: "t", Mapping: m}
	gen := &InsertSourceGen{Table: table, Columns: []string{}}

	out, err := gen.Generate(nil)
	if err != nil {
		t.Fatalf("expected default to satisfy NOT NULL, got %v", err)
	}
	if !strings.Contains(string(out), "active") {
		t.Errorf("expected default value in output, got %s", out)
	}
}

func TestInsertSourceGen_CheckConstraint(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "age", Type: types.TypeInt, Required: true},
	})
	table := &Table{
		Name:    "t",
		Mapping: m,
		CheckConstraints: []CheckConstraint{
			{Name: "age_nonnegative", Expr: BinaryOp{Left: ColumnRef("age"), Right: Literal{Value: int64(0)}, Op: ">="}},
		},
	}
	gen := &InsertSourceGen{Table: table, Columns: []string{"age"}}

	if _, err := gen.Generate([]interface{}{int64(-1)}); err == nil {
		t.Fatalf("expected CHECK constraint violation for negative age")
	}
	if _, err := gen.Generate([]interface{}{int64(5)}); err != nil {
		t.Errorf("expected age=5 to satisfy the CHECK constraint: %v", err)
	}
}

func TestUpdateSourceGen_UnspecifiedColumnsRetainValue(t *testing.T) {
	m := buildMapping(t, []mapping.RawField{
		{Name: "id", Type: types.TypeInt, Required: true},
		{Name: "name", Type: types.TypeVarchar, Required: true},
	})
	table := &Table{Name: "t", Mapping: m}
	gen := &UpdateSourceGen{Table: table, UpdateColumns: []string{"name"}}

	current := bson.D{{Key: "id", Value: int64(1)}, {Key: "name", Value: "old"}}
	out, err := gen.Generate(current, []Assignment{{Column: "name", Expression: Literal{Value: "new"}}}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(out), "new") || !strings.Contains(string(out), "1") {
		t.Errorf("expected updated name and retained id, got %s", out)
	}
}

func TestCanonicalJSON_RoundTrip(t *testing.T) {
	doc := bson.D{{Key: "a", Value: int64(1)}, {Key: "b", Value: "x"}}
	out, err := canonicalJSON(doc)
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	parsed, err := ParseCanonicalJSON(out)
	if err != nil {
		t.Fatalf("ParseCanonicalJSON: %v", err)
	}
	av, ok := lookupBson(parsed, "a")
	if !ok {
		t.Fatalf("expected field 'a' to round-trip")
	}
	if _, err := valueFromBson(av); err != nil {
		t.Errorf("valueFromBson: %v", err)
	}
}
