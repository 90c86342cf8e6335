// Package errors defines the typed error taxonomy surfaced on the wire
// by the mapping, source-generation and upsert packages (spec.md §6/§7).
// Each condition is its own struct with an Error() method, in the
// teacher's pkg/errors style, generalized from table/index errors to
// mapping/document/version errors.
package errors

import (
	"fmt"

	cockroachdberrors "github.com/cockroachdb/errors"
)

// InvalidTypeNameError is raised when a mapping's type name violates
// the naming rules in spec.md §4.1 rule 1.
type InvalidTypeNameError struct {
	Name   string
	Reason string
}

func (e *InvalidTypeNameError) Error() string {
	return fmt.Sprintf("invalid type name %q: %s", e.Name, e.Reason)
}

// MapperParsingError is raised when a raw mapping fails to parse or
// merge (conflicting definitions, unknown field type, bad alias target).
type MapperParsingError struct {
	Field   string
	Message string
}

func (e *MapperParsingError) Error() string {
	return fmt.Sprintf("failed to parse mapping [%s]: %s", e.Field, e.Message)
}

// FieldLimitExceededError is raised when a merge under reason=UPDATE
// would push the mapping past index.mapping.total_fields.limit.
type FieldLimitExceededError struct {
	Limit int
	Total int
}

func (e *FieldLimitExceededError) Error() string {
	return fmt.Sprintf("total field count %d exceeds limit of %d, set by index.mapping.total_fields.limit", e.Total, e.Limit)
}

// DepthLimitExceededError is raised when an object path's depth would
// exceed index.mapping.depth.limit under reason=UPDATE.
type DepthLimitExceededError struct {
	Path  string
	Depth int
	Limit int
}

func (e *DepthLimitExceededError) Error() string {
	return fmt.Sprintf("object path %q has depth %d, exceeding index.mapping.depth.limit of %d", e.Path, e.Depth, e.Limit)
}

// RoutingRequiredError is raised when a routing-partitioned index's
// routing field is not marked required.
type RoutingRequiredError struct {
	Field string
}

func (e *RoutingRequiredError) Error() string {
	return fmt.Sprintf("routing field %q must be required on a routing-partitioned index", e.Field)
}

// VersionConflictError is raised when an item's expected version,
// seqNo or primaryTerm disagrees with the document's current state.
type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict for document %q: expected %d, current %d", e.ID, e.Expected, e.Actual)
}

// DocumentMissingError is raised when an update's target document does
// not exist.
type DocumentMissingError struct {
	ID string
}

func (e *DocumentMissingError) Error() string {
	return fmt.Sprintf("document %q not found", e.ID)
}

// DocumentSourceMissingError is raised when the loaded document has no
// stored source to apply an update against.
type DocumentSourceMissingError struct {
	ID string
}

func (e *DocumentSourceMissingError) Error() string {
	return fmt.Sprintf("document %q has no source stored", e.ID)
}

// ConstraintViolationError is raised by SourceGenerator when a NOT
// NULL, CHECK, or VALUE_MATCH rule fails.
type ConstraintViolationError struct {
	Column  string
	Message string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation on column %q: %s", e.Column, e.Message)
}

// RetryOnReplicaError is raised on the replica path when the engine
// requires a mapping update before the operation can be retried.
type RetryOnReplicaError struct {
	Index        string
	MappingDelta []byte

	cause error
}

func NewRetryOnReplicaError(index string, mappingDelta []byte, cause error) *RetryOnReplicaError {
	return &RetryOnReplicaError{Index: index, MappingDelta: mappingDelta, cause: cause}
}

func (e *RetryOnReplicaError) Error() string {
	return fmt.Sprintf("retry on replica for index %q: mapping update required", e.Index)
}

func (e *RetryOnReplicaError) Unwrap() error { return e.cause }

// Failure is the generic per-item failure recorded in a shard response
// when continue-on-error is set, or as the batch's terminal error when
// it is not. IsVersionConflict lets the caller distinguish a retried-out
// conflict from a hard engine failure without re-inspecting the cause.
type Failure struct {
	ID                string
	Message           string
	IsVersionConflict bool
}

func (e *Failure) Error() string {
	return fmt.Sprintf("item %q failed: %s", e.ID, e.Message)
}

// InterruptedError terminates a batch when the kill flag is observed.
type InterruptedError struct {
	ID string
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("operation on item %q interrupted", e.ID)
}

// InconsistentMappingError is raised when a freshly installed mapping
// fails its own round-trip invariant (serialize(parse(serialize(M))) !=
// serialize(M)) — an internal bug, never a user-facing condition. It is
// wrapped with github.com/cockroachdb/errors to carry a stack trace,
// since by definition this should never happen and an operator will
// need more than the message to diagnose it.
func InconsistentMappingError(indexName string) error {
	return cockroachdberrors.Newf("mapping for index %q does not round-trip through its own serializer", indexName)
}

// WrapInternal annotates err with a stack trace for faults that should
// never occur in a correct build (merge-then-install races, corrupt
// content source). Domain errors returned to callers should not be
// wrapped this way — only faults an operator would need to debug.
func WrapInternal(err error, context string) error {
	return cockroachdberrors.Wrapf(err, "%s", context)
}
