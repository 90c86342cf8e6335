package upsert

import (
	"github.com/arkdb/shardwrite/pkg/types"
	"github.com/arkdb/shardwrite/pkg/wire"
)

// selectInsertVersion implements spec.md §4.4's version-selection
// table for the insert path.
func selectInsertVersion(action wire.DuplicateKeyAction) (version, seqNo, primaryTerm int64) {
	if action == wire.DuplicateKeyOverwrite {
		return types.MatchAny, types.UnassignedSeqNo, types.UnassignedSeqNo
	}
	return types.MatchDeleted, types.UnassignedSeqNo, types.UnassignedSeqNo
}

// selectUpdateVersion implements spec.md §4.4's version-selection
// table for the update path.
func selectUpdateVersion(item *wire.Item) (version, seqNo, primaryTerm int64) {
	return types.MatchAny, item.SeqNo, item.PrimaryTerm
}
