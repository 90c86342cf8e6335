package upsert

import (
	"context"

	upsertgeneric "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/shard"
	"github.com/arkdb/shardwrite/pkg/wire"
)

// ReplicaExecutor applies a request already resolved on the primary:
// each item's Source was either filled in by UpsertExecutor.Execute or
// left nil when that item was skipped or failed (spec.md §4.5).
type ReplicaExecutor struct {
	Index  string
	Engine shard.ShardWriteEngine
}

func NewReplicaExecutor(index string, engine shard.ShardWriteEngine) *ReplicaExecutor {
	return &ReplicaExecutor{Index: index, Engine: engine}
}

// Execute applies req's resolved items on the replica, in input order.
// Items with a nil Source are skipped silently (spec.md §4.5) — they
// were already skipped, failed, or interrupted on the primary.
func (re *ReplicaExecutor) Execute(ctx context.Context, req *wire.Request) (*Response, error) {
	resp := &Response{}

	for i := range req.Items {
		item := &req.Items[i]
		if len(item.Source) == 0 {
			resp.Items = append(resp.Items, skippedOutcome(i, item.ID))
			continue
		}

		result, err := re.Engine.ApplyIndexOperationOnReplica(ctx, item.SeqNo, item.Version, item.Source)
		if err != nil {
			resp.Items = append(resp.Items, failureOutcome(i, item.ID, err))
			resp.BatchFailure = err
			return resp, nil
		}

		switch result.Type {
		case shard.ResultSuccess:
			resp.Items = append(resp.Items, successOutcome(i, item.ID, result.SeqNo, result.Version, result.TranslogLocation))

		case shard.ResultMappingUpdateRequired:
			retryErr := upsertgeneric.NewRetryOnReplicaError(re.Index, result.RequiredMappingUpdate, nil)
			resp.Items = append(resp.Items, failureOutcome(i, item.ID, retryErr))
			resp.BatchFailure = retryErr
			return resp, nil

		case shard.ResultFailure:
			resp.Items = append(resp.Items, failureOutcome(i, item.ID, toFailure(item.ID, result.Failure)))
			resp.BatchFailure = result.Failure
			return resp, nil
		}
	}

	return resp, nil
}
