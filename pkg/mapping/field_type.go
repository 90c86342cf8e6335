package mapping

import "github.com/arkdb/shardwrite/pkg/types"

// AnalyzerRef names an analyzer by handle; the actual Analyzer lookup
// is resolved against the registry injected at MappingService
// construction (spec.md §9: "shared mutable module state becomes
// explicitly injected context" — no global analyzer registry).
type AnalyzerRef string

// AnalyzerKind selects which of a field's three analyzer handles to
// resolve (spec.md §4.1 "analyzers dispatch per-field").
type AnalyzerKind int

const (
	AnalyzerIndex AnalyzerKind = iota
	AnalyzerSearch
	AnalyzerSearchQuote
)

// Analyzer is the minimal text-analysis contract a field type
// dispatches to; the concrete tokenizer/filter chain lives in the
// Lucene-adjacent engine this spec treats as external (spec.md §1).
type Analyzer interface {
	Name() string
}

// NamedAnalyzer is a trivial Analyzer identified only by name, used as
// the default fallback and by tests.
type NamedAnalyzer string

func (a NamedAnalyzer) Name() string { return string(a) }

// FieldType is the immutable, installed field definition described in
// spec.md §3: a fully qualified dotted path, analyzer handles, and the
// generated/default/nullable markers SourceGenerator consults.
type FieldType struct {
	FullName            string
	Kind                types.DataType
	Nullable            bool
	Required            bool
	Generated           bool
	GeneratedExpr       string
	HasDefault          bool
	DefaultExpr         string
	IndexAnalyzer       AnalyzerRef
	SearchAnalyzer      AnalyzerRef
	SearchQuoteAnalyzer AnalyzerRef
}

// Analyzer resolves one of the field's analyzer handles against reg,
// falling back to reg's default analyzer when the field doesn't
// override that handle.
func (f *FieldType) Analyzer(kind AnalyzerKind, reg AnalyzerRegistry) Analyzer {
	var ref AnalyzerRef
	switch kind {
	case AnalyzerIndex:
		ref = f.IndexAnalyzer
	case AnalyzerSearch:
		ref = f.SearchAnalyzer
	case AnalyzerSearchQuote:
		ref = f.SearchQuoteAnalyzer
	}
	if ref == "" {
		return reg.Default()
	}
	if a, ok := reg.Resolve(ref); ok {
		return a
	}
	return reg.Default()
}

// merge produces the result of merging f with other, following the
// same field definition, or an error describing the conflict
// (spec.md §4.1 rule 5, "new-mapper cross-checks").
func (f *FieldType) merge(other *FieldType) (*FieldType, error) {
	if f.Kind != other.Kind {
		return nil, &conflictError{field: f.FullName, reason: "type mismatch"}
	}
	merged := *f
	// A later merge may relax nullable/required only in the direction
	// the incoming definition states explicitly; conflicting generated
	// expressions are a hard error.
	if f.Generated && other.Generated && f.GeneratedExpr != other.GeneratedExpr {
		return nil, &conflictError{field: f.FullName, reason: "conflicting generated expressions"}
	}
	merged.Nullable = other.Nullable
	merged.Required = other.Required
	if other.Generated {
		merged.Generated = true
		merged.GeneratedExpr = other.GeneratedExpr
	}
	if other.HasDefault {
		merged.HasDefault = true
		merged.DefaultExpr = other.DefaultExpr
	}
	if other.IndexAnalyzer != "" {
		merged.IndexAnalyzer = other.IndexAnalyzer
	}
	if other.SearchAnalyzer != "" {
		merged.SearchAnalyzer = other.SearchAnalyzer
	}
	if other.SearchQuoteAnalyzer != "" {
		merged.SearchQuoteAnalyzer = other.SearchQuoteAnalyzer
	}
	return &merged, nil
}

type conflictError struct {
	field  string
	reason string
}

func (e *conflictError) Error() string {
	return "mapper [" + e.field + "]: " + e.reason
}
