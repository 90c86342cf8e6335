// Package mapping implements the per-index document schema: parsing,
// merging and validating raw mapping definitions, and the immutable
// FieldTypeLookup snapshots readers use to resolve field types without
// blocking on a concurrent merge (spec.md §4.1, §4.2, §5).
package mapping

import (
	"bytes"
	"sort"
	"sync"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/metrics"
)

// AnalyzerRegistry resolves an AnalyzerRef to a concrete Analyzer and
// supplies the default fallback. It is injected at construction time
// rather than reached through a package-level global (spec.md §9:
// "shared mutable module state becomes explicitly injected context").
type AnalyzerRegistry interface {
	Resolve(ref AnalyzerRef) (Analyzer, bool)
	Default() Analyzer
}

// PerFieldAnalyzer is what IndexAnalyzer/SearchAnalyzer/
// SearchQuoteAnalyzer return: an analyzer that dispatches per field
// against a snapshot of the live mapping (spec.md §4.1).
type PerFieldAnalyzer struct {
	kind     AnalyzerKind
	mapping  *DocumentMapping
	registry AnalyzerRegistry
}

func (p *PerFieldAnalyzer) Name() string { return "per-field" }

// For resolves the analyzer for a specific field, falling back to the
// registry default if the field is unknown or doesn't override it.
func (p *PerFieldAnalyzer) For(fieldName string) Analyzer {
	ft, ok := p.mapping.FieldType(fieldName)
	if !ok {
		return p.registry.Default()
	}
	return ft.Analyzer(p.kind, p.registry)
}

// MappingService exclusively owns the current mapping for one index;
// merges are single-writer, many-reader (spec.md §5). Modeled after
// the teacher's TableMetaData (pkg/storage/table.go): a mutex
// protecting an atomically-replaceable pointer, generalized from
// "table registry" to "document mapping."
type MappingService struct {
	indexName string
	settings  Settings
	registry  AnalyzerRegistry
	metrics   *metrics.Collector

	mu      sync.RWMutex
	current *DocumentMapping
}

// NewMappingService constructs a service for one index. settings and
// registry are injected, not read from global state. metricsCollector
// may be nil, in which case merges are not instrumented.
func NewMappingService(indexName string, settings Settings, registry AnalyzerRegistry, metricsCollector *metrics.Collector) (*MappingService, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &MappingService{indexName: indexName, settings: settings, registry: registry, metrics: metricsCollector}, nil
}

func reasonLabel(reason MergeReason) string {
	if reason == MergeRecovery {
		return "recovery"
	}
	return "update"
}

func (s *MappingService) observeMerge(reason MergeReason, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.MappingMerges.WithLabelValues(reasonLabel(reason), outcome).Inc()
}

// Current returns the live mapping snapshot. Safe to call concurrently
// with Merge; the returned pointer is never mutated in place.
func (s *MappingService) Current() *DocumentMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// FieldType, MatchPattern and ObjectMapper proxy to the live snapshot.
func (s *MappingService) FieldType(fullName string) (*FieldType, bool) {
	cur := s.Current()
	if cur == nil {
		return nil, false
	}
	return cur.FieldType(fullName)
}

func (s *MappingService) MatchPattern(pattern string) []string {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	return cur.MatchPattern(pattern)
}

func (s *MappingService) ObjectMapper(path string) (*ObjectMapper, bool) {
	cur := s.Current()
	if cur == nil {
		return nil, false
	}
	return cur.ObjectMapper(path)
}

func (s *MappingService) IndexAnalyzer() *PerFieldAnalyzer {
	return &PerFieldAnalyzer{kind: AnalyzerIndex, mapping: s.Current(), registry: s.registry}
}
func (s *MappingService) SearchAnalyzer() *PerFieldAnalyzer {
	return &PerFieldAnalyzer{kind: AnalyzerSearch, mapping: s.Current(), registry: s.registry}
}
func (s *MappingService) SearchQuoteAnalyzer() *PerFieldAnalyzer {
	return &PerFieldAnalyzer{kind: AnalyzerSearchQuote, mapping: s.Current(), registry: s.registry}
}

// Merge parses raw, merges it with the live mapping, validates the
// result, and installs it atomically only if every check passes
// (spec.md §4.1 "Merge semantics"). On any validation failure the
// previous mapping is retained unchanged.
func (s *MappingService) Merge(raw RawMapping, reason MergeReason) (*DocumentMapping, error) {
	if err := validateTypeName(raw.TypeName); err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}

	incoming, err := buildFromRaw(raw)
	if err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, err := mergeDocumentMappings(s.current, incoming)
	if err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}
	candidate.MappingVersion++

	if err := s.validateLimits(candidate, reason); err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}

	if raw.Partitioned {
		ft, ok := candidate.lookup.FieldType(raw.RoutingField)
		if !ok || !ft.Required {
			s.observeMerge(reason, metrics.OutcomeFailure)
			return nil, &mapperrors.RoutingRequiredError{Field: raw.RoutingField}
		}
	}

	if err := candidate.compress(); err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}

	if err := assertRoundTrips(s.indexName, candidate); err != nil {
		s.observeMerge(reason, metrics.OutcomeFailure)
		return nil, err
	}

	s.current = candidate
	s.observeMerge(reason, metrics.OutcomeSuccess)
	return candidate, nil
}

// MergeBatch merges a set of named raw mappings. Per spec.md §9 design
// note (c), the batch-merge guard rejects multiple types only *after*
// parsing the first one — preserved here by building the first
// mapping before checking len(mappings).
func (s *MappingService) MergeBatch(mappings map[string]RawMapping, reason MergeReason) (*DocumentMapping, error) {
	if len(mappings) == 0 {
		return nil, &mapperrors.MapperParsingError{Field: "", Message: "no mapping supplied"}
	}

	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)

	first := mappings[names[0]]
	if err := validateTypeName(first.TypeName); err != nil {
		return nil, err
	}
	if _, err := buildFromRaw(first); err != nil {
		return nil, err
	}

	if len(mappings) > 1 {
		return nil, &mapperrors.MapperParsingError{
			Field:   "_doc",
			Message: "multiple types in a single merge batch are not supported; only a single type is allowed",
		}
	}

	return s.Merge(first, reason)
}

// IndexMetadata is the minimal cluster-state view UpdateFromMetadata
// reasons about: the mapping version and content source currently
// believed to be installed, versus the incoming one.
type IndexMetadata struct {
	MappingVersion int64
	MappingSource  []byte
	Raw            RawMapping
}

// UpdateFromMetadata implements the RECOVERY-path merge described in
// spec.md §4.1: if the versions match, no install occurs and the
// content must already be byte-identical; otherwise the incoming
// version must be newer, the merge installs, and needsRefresh reports
// whether the server's own re-serialization differs from what the
// caller supplied (so the caller knows to propagate the corrected
// bytes).
func (s *MappingService) UpdateFromMetadata(currentMeta, newMeta IndexMetadata) (needsRefresh bool, err error) {
	if currentMeta.MappingVersion == newMeta.MappingVersion {
		if !bytes.Equal(currentMeta.MappingSource, newMeta.MappingSource) {
			return false, mapperrors.WrapInternal(
				&mapperrors.MapperParsingError{Field: s.indexName, Message: "same mapping version but differing content"},
				"updateFromMetadata",
			)
		}
		return false, nil
	}

	if newMeta.MappingVersion <= currentMeta.MappingVersion {
		return false, &mapperrors.MapperParsingError{
			Field:   s.indexName,
			Message: "mapping metadata went backwards in version",
		}
	}

	installed, err := s.Merge(newMeta.Raw, MergeRecovery)
	if err != nil {
		return false, err
	}

	if bytes.Equal(installed.contentSource, currentMeta.MappingSource) {
		return false, mapperrors.InconsistentMappingError(s.indexName)
	}

	return !bytes.Equal(installed.contentSource, newMeta.MappingSource), nil
}

// validateLimits enforces spec.md §4.1 rules 2–3, only under
// MergeUpdate.
func (s *MappingService) validateLimits(candidate *DocumentMapping, reason MergeReason) error {
	if reason != MergeUpdate {
		return nil
	}

	objectMappers, fieldMappers, metadataMappers, aliasMappers := candidate.counts()
	total := objectMappers + fieldMappers - metadataMappers + aliasMappers
	if total > s.settings.TotalFieldsLimit {
		return &mapperrors.FieldLimitExceededError{Limit: s.settings.TotalFieldsLimit, Total: total}
	}

	for path := range candidate.objectMappers {
		if path == "" {
			continue
		}
		if d := Depth(path); d > s.settings.DepthLimit {
			return &mapperrors.DepthLimitExceededError{Path: path, Depth: d, Limit: s.settings.DepthLimit}
		}
	}
	for name := range candidate.lookup.byName {
		if d := Depth(name); d > s.settings.DepthLimit {
			return &mapperrors.DepthLimitExceededError{Path: name, Depth: d, Limit: s.settings.DepthLimit}
		}
	}
	return nil
}

// assertRoundTrips is the debug invariant from spec.md §4.1:
// re-parsing an installed mapping's content source must yield a
// mapping whose own content source equals the original.
func assertRoundTrips(indexName string, candidate *DocumentMapping) error {
	reparsed, err := Parse(candidate.contentSource)
	if err != nil {
		return mapperrors.WrapInternal(err, "round-trip parse of freshly merged mapping")
	}
	if sameDigest(reparsed.contentSource, candidate.contentSource) && bytes.Equal(reparsed.contentSource, candidate.contentSource) {
		return nil
	}
	return mapperrors.InconsistentMappingError(indexName)
}
