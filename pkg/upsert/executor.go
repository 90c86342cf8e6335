// Package upsert implements the per-item retry/version state machine
// driving the primary and replica write paths (spec.md §4.4-§4.5).
// Deep inheritance and exceptions-as-control-flow in the source this
// spec distills from are reshaped here as a flat state machine over a
// tagged IndexResult, per spec.md §9's design notes.
package upsert

import (
	"context"
	goerrors "errors"
	"sync/atomic"
	"time"

	upsertgeneric "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/metrics"
	"github.com/arkdb/shardwrite/pkg/shard"
	"github.com/arkdb/shardwrite/pkg/sourcegen"
	"github.com/arkdb/shardwrite/pkg/types"
	"github.com/arkdb/shardwrite/pkg/wire"
)

// MaxRetryLimit bounds the number of apply attempts a single item
// makes, the first attempt and every retry included (spec.md §4.4). SPEC_FULL.md's open-question
// decision (b): kept as the documented heuristic, not re-derived.
const MaxRetryLimit = 100_000

// UpsertExecutor drives one shard's primary write path: per-item
// insert/update attempts against the engine, version-conflict retries,
// mapping-update handling, continue-on-error policy and cooperative
// cancellation (spec.md §4.4).
type UpsertExecutor struct {
	Index        string
	Engine       shard.ShardWriteEngine
	SchemaClient shard.SchemaUpdateClient
	Table        *sourcegen.Table
	Validation   sourcegen.ValidationMode
	Metrics      *metrics.Collector

	// killed is the shared atomic kill flag (spec.md §4.4 "Kill
	// flag"), set by the task service and polled between items.
	killed *int32
}

// NewUpsertExecutor constructs an executor sharing killFlag with its
// caller (a single flag is typically shared across every shard the
// task service is tearing down).
func NewUpsertExecutor(index string, engine shard.ShardWriteEngine, schemaClient shard.SchemaUpdateClient, table *sourcegen.Table, killFlag *int32, metricsCollector *metrics.Collector) *UpsertExecutor {
	return &UpsertExecutor{
		Index:        index,
		Engine:       engine,
		SchemaClient: schemaClient,
		Table:        table,
		Metrics:      metricsCollector,
		killed:       killFlag,
	}
}

func (ex *UpsertExecutor) isKilled() bool {
	return ex.killed != nil && atomic.LoadInt32(ex.killed) != 0
}

// Execute runs req's items in input order on the primary, mutating
// each item's Source in place so the request can be re-serialized to
// replicas unchanged (spec.md §3 "Lifecycle").
func (ex *UpsertExecutor) Execute(ctx context.Context, req *wire.Request) (*Response, error) {
	resp := &Response{}

	for i := range req.Items {
		if ex.isKilled() {
			outcome := interruptedOutcome(i, req.Items[i].ID)
			resp.Items = append(resp.Items, outcome)
			resp.BatchFailure = &upsertgeneric.InterruptedError{ID: outcome.ID}
			ex.observe(metrics.OutcomeInterrupted)
			break
		}

		item := &req.Items[i]
		outcome := ex.processItem(ctx, i, item, req)

		switch {
		case outcome.Interrupted:
			item.Source = nil
			ex.observe(metrics.OutcomeInterrupted)
		case outcome.Skipped:
			item.Source = nil
			ex.observe(metrics.OutcomeSkipped)
		case outcome.Failure != nil:
			item.Source = nil
			ex.observe(metrics.OutcomeFailure)
		default:
			ex.observe(metrics.OutcomeSuccess)
		}

		resp.Items = append(resp.Items, outcome)

		if outcome.Interrupted {
			resp.BatchFailure = &upsertgeneric.InterruptedError{ID: outcome.ID}
			break
		}
		if outcome.Failure != nil && !req.Mode.ContinueOnError {
			resp.BatchFailure = outcome.Failure
			break
		}
	}

	return resp, nil
}

func (ex *UpsertExecutor) observe(outcome string) {
	if ex.Metrics == nil {
		return
	}
	ex.Metrics.ItemsTotal.WithLabelValues(outcome).Inc()
}

// processItem runs one item through the state machine in spec.md §4.4's
// diagram: START -> INSERT_ATTEMPT|UPDATE_ATTEMPT -> APPLY, looping on
// version conflicts and mapping-update-required results.
func (ex *UpsertExecutor) processItem(ctx context.Context, loc int, item *wire.Item, req *wire.Request) ItemOutcome {
	tryInsertFirst := len(item.InsertValues) > 0
	retryOnConflict := item.SeqNo == types.UnassignedSeqNo && item.Version == types.MatchAny
	firstAttempt := true

	var attempts int
	var lastErr error
	if ex.Metrics != nil {
		defer func() { ex.Metrics.RetriesPerItem.Observe(float64(attempts)) }()
	}

	for {
		if ex.isKilled() {
			return interruptedOutcome(loc, item.ID)
		}

		attempts++
		if attempts > MaxRetryLimit {
			return failureOutcome(loc, item.ID, toFailure(item.ID, lastErr))
		}

		isRetry := attempts > 1
		var version, seqNo, primaryTerm int64
		var source []byte
		var err error

		if tryInsertFirst && firstAttempt {
			version, seqNo, primaryTerm = selectInsertVersion(req.Mode.DuplicateKeyAction)
			source, err = ex.generateInsertSource(req, item)
		} else {
			version, seqNo, primaryTerm = selectUpdateVersion(item)
			source, err = ex.lookupAndGenerateUpdateSource(ctx, req, item)
		}
		if err != nil {
			return failureOutcome(loc, item.ID, err)
		}

		start := time.Now()
		result, applyErr := ex.Engine.ApplyIndexOperationOnPrimary(ctx, version, types.VersionTypeInternal, source, seqNo, primaryTerm, isRetry)
		if ex.Metrics != nil {
			ex.Metrics.EngineApplyLatency.Observe(time.Since(start).Seconds())
		}
		if applyErr != nil {
			return failureOutcome(loc, item.ID, applyErr)
		}

		switch result.Type {
		case shard.ResultSuccess:
			item.Source = source
			return successOutcome(loc, item.ID, result.SeqNo, result.Version, result.TranslogLocation)

		case shard.ResultMappingUpdateRequired:
			if err := ex.SchemaClient.UpdateMappingOnMaster(ctx, ex.Index, result.RequiredMappingUpdate); err != nil {
				return failureOutcome(loc, item.ID, err)
			}
			continue

		case shard.ResultFailure:
			lastErr = result.Failure
			if isVersionConflict(result.Failure) {
				if tryInsertFirst && firstAttempt && req.Mode.DuplicateKeyAction == wire.DuplicateKeyIgnore {
					return skippedOutcome(loc, item.ID)
				}
				if tryInsertFirst && firstAttempt && item.UpdateAssignments != nil {
					firstAttempt = false
					tryInsertFirst = false
					continue
				}
				if retryOnConflict {
					firstAttempt = false
					tryInsertFirst = false
					continue
				}
			}
			return failureOutcome(loc, item.ID, toFailure(item.ID, result.Failure))
		}

		return failureOutcome(loc, item.ID, goerrors.New("engine returned an unrecognized result type"))
	}
}

func (ex *UpsertExecutor) generateInsertSource(req *wire.Request, item *wire.Item) ([]byte, error) {
	columns := make([]string, len(req.InsertColumns))
	for i, ref := range req.InsertColumns {
		columns[i] = ref.Name
	}
	gen := &sourcegen.InsertSourceGen{Table: ex.Table, Columns: columns, Validation: ex.Validation}

	values := make([]interface{}, len(item.InsertValues))
	for i, v := range item.InsertValues {
		values[i] = v
	}
	return gen.Generate(values)
}

// lookupAndGenerateUpdateSource implements spec.md §4.4's
// "Document lookup (update path)": resolve the current document,
// validate the caller's expected version, then produce the updated
// source via UpdateSourceGen.
func (ex *UpsertExecutor) lookupAndGenerateUpdateSource(ctx context.Context, req *wire.Request, item *wire.Item) ([]byte, error) {
	doc, err := ex.Engine.LookupDoc(ctx, item.ID, types.VersionTypeInternal, item.SeqNo, item.PrimaryTerm)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &upsertgeneric.DocumentMissingError{ID: item.ID}
	}
	if len(doc.Source) == 0 {
		return nil, &upsertgeneric.DocumentSourceMissingError{ID: item.ID}
	}
	if item.Version != types.MatchAny && item.Version != doc.Version {
		return nil, &upsertgeneric.VersionConflictError{ID: item.ID, Expected: item.Version, Actual: doc.Version}
	}

	currentDoc, err := sourcegen.ParseCanonicalJSON(doc.Source)
	if err != nil {
		return nil, err
	}

	insertValues := make(map[string]interface{}, len(req.InsertColumns))
	for i, ref := range req.InsertColumns {
		if i < len(item.InsertValues) {
			insertValues[ref.Name] = item.InsertValues[i]
		}
	}

	gen := &sourcegen.UpdateSourceGen{Table: ex.Table, UpdateColumns: req.UpdateColumns}
	return gen.Generate(currentDoc, item.UpdateAssignments, insertValues)
}

func isVersionConflict(err error) bool {
	var vc *upsertgeneric.VersionConflictError
	return goerrors.As(err, &vc)
}

func toFailure(id string, err error) *upsertgeneric.Failure {
	if err == nil {
		return &upsertgeneric.Failure{ID: id, Message: "unknown failure"}
	}
	return &upsertgeneric.Failure{ID: id, Message: err.Error(), IsVersionConflict: isVersionConflict(err)}
}
