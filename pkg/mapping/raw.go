package mapping

import "github.com/arkdb/shardwrite/pkg/types"

// MergeReason distinguishes a user-driven mapping update from a
// recovery-time replay of already-accepted cluster state. Field-count
// and depth limits are enforced only under MergeUpdate (spec.md §4.1
// rules 2–3).
type MergeReason int

const (
	MergeUpdate MergeReason = iota
	MergeRecovery
)

// RawField is an as-yet-unmerged field definition, the shape a caller
// (the SQL planner, an external collaborator per spec.md §1) hands to
// MappingService.Merge.
type RawField struct {
	Name                string
	Type                types.DataType
	Nullable            bool
	Required            bool
	Generated           bool
	GeneratedExpr       string
	HasDefault          bool
	DefaultExpr         string
	IndexAnalyzer       string
	SearchAnalyzer      string
	SearchQuoteAnalyzer string
}

// RawAlias declares a field alias: Name resolves to Target's field type.
type RawAlias struct {
	Name   string
	Target string
}

// RawObject is an as-yet-unmerged object mapper: a single name, joined
// to its parent's path when the mapping is built (empty for the root),
// plus its immediate field and child-object children.
type RawObject struct {
	Name     string
	Fields   []RawField
	Children []RawObject
	Aliases  []RawAlias
}

// RawMapping is the full as-yet-unmerged document schema for one type.
type RawMapping struct {
	TypeName     string
	Root         RawObject
	Partitioned  bool
	RoutingField string
}
