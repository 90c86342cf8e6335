// Package sourcegen produces the canonical document payload for an
// insert or an update, enforcing generated-column and constraint
// rules (spec.md §4.3). Canonical bytes are BSON internally and
// JSON-shaped on the wire, the way the teacher's pkg/storage/bson.go
// round-trips JSON through bson.D.
package sourcegen

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/arkdb/shardwrite/pkg/types"
)

// valueFromBson mirrors the teacher's GetValueFromBson, generalized to
// return a types.Comparable from a raw bson value without requiring
// the key to already exist in a bson.D.
func valueFromBson(v interface{}) (types.Comparable, error) {
	switch val := v.(type) {
	case int:
		return types.IntValue(val), nil
	case int32:
		return types.IntValue(val), nil
	case int64:
		return types.IntValue(val), nil
	case string:
		return types.VarcharValue(val), nil
	case bool:
		return types.BoolValue(val), nil
	case float32:
		return types.FloatValue(val), nil
	case float64:
		return types.FloatValue(val), nil
	default:
		return types.VarcharValue(fmt.Sprintf("%v", val)), nil
	}
}

// lookupBson mirrors the teacher's DoesTheKeyExist, returning the raw
// bson value alongside the membership flag.
func lookupBson(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// setBson replaces or appends key within doc, returning the updated
// document (doc is not mutated in place).
func setBson(doc bson.D, key string, value interface{}) bson.D {
	next := make(bson.D, 0, len(doc)+1)
	replaced := false
	for _, e := range doc {
		if e.Key == key {
			next = append(next, bson.E{Key: key, Value: value})
			replaced = true
			continue
		}
		next = append(next, e)
	}
	if !replaced {
		next = append(next, bson.E{Key: key, Value: value})
	}
	return next
}
