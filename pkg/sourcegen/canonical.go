package sourcegen

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	sgerrors "github.com/arkdb/shardwrite/pkg/errors"
)

// canonicalJSON renders doc as the self-describing JSON-shaped payload
// spec.md §4.3 calls for, round-tripping through BSON the way the
// teacher's BsonToJson does for its stored rows.
func canonicalJSON(doc bson.D) ([]byte, error) {
	jsonBytes, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, sgerrors.WrapInternal(err, "marshaling canonical document source")
	}
	return jsonBytes, nil
}

// ParseCanonicalJSON parses a JSON-shaped document payload back into
// bson.D, mirroring the teacher's JsonToBson.
func ParseCanonicalJSON(jsonSource []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(jsonSource, true, &doc); err != nil {
		return nil, sgerrors.WrapInternal(err, "parsing canonical document source")
	}
	return doc, nil
}
