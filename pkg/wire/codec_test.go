package wire

import (
	"testing"

	"github.com/arkdb/shardwrite/pkg/sourcegen"
	"github.com/arkdb/shardwrite/pkg/types"
)

func sampleRequest() *Request {
	return &Request{
		ShardID:       "shard-7",
		JobID:         "11111111-1111-7111-8111-111111111111",
		UpdateColumns: []string{"name"},
		InsertColumns: []Reference{{Name: "id", Type: types.TypeInt}, {Name: "name", Type: types.TypeVarchar}},
		Mode: Mode{
			ContinueOnError:     true,
			ValidateConstraints: true,
			DuplicateKeyAction:  DuplicateKeyOverwrite,
		},
		SessionSettings: map[string]string{"timeout": "30s"},
		Items: []Item{
			{
				ID:          "doc-1",
				Version:     types.MatchAny,
				SeqNo:       types.UnassignedSeqNo,
				PrimaryTerm: types.UnassignedSeqNo,
				InsertValues: []types.Comparable{
					types.IntValue(1), types.VarcharValue("alice"),
				},
				Source: []byte(`{"id":1,"name":"alice"}`),
			},
			{
				ID:                "doc-2",
				Version:           types.MatchAny,
				SeqNo:             7,
				PrimaryTerm:       1,
				UpdateAssignments: []sourcegen.Assignment{{Column: "name", Expression: sourcegen.Literal{Value: "bob"}}},
				ReturnValues:      []sourcegen.Expression{sourcegen.ColumnRef("name")},
			},
		},
	}
}

func TestEncodeDecode_RoundTrip_V4_2_0(t *testing.T) {
	req := sampleRequest()
	encoded, err := Encode(req, V4_2_0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded, V4_2_0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ShardID != req.ShardID || decoded.JobID != req.JobID {
		t.Fatalf("shardID/jobID mismatch: got %+v", decoded)
	}
	if len(decoded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(decoded.Items))
	}
	if decoded.Mode.DuplicateKeyAction != DuplicateKeyOverwrite || !decoded.Mode.ContinueOnError {
		t.Errorf("mode did not round-trip: %+v", decoded.Mode)
	}
	if string(decoded.Items[0].Source) != string(req.Items[0].Source) {
		t.Errorf("item source did not round-trip")
	}
	if len(decoded.Items[1].ReturnValues) != 1 {
		t.Errorf("expected returnValues to round-trip under V4_2_0, got %v", decoded.Items[1].ReturnValues)
	}
}

func TestEncodeDecode_RoundTrip_PreV4_2_0(t *testing.T) {
	req := sampleRequest()
	req.Items[1].ReturnValues = nil // not meaningful pre-V4_2_0

	const legacyVersion ProtocolVersion = 400

	encoded, err := Encode(req, legacyVersion)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded, legacyVersion)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Mode.DuplicateKeyAction != DuplicateKeyOverwrite {
		t.Errorf("expected duplicateKeyAction to round-trip pre-V4_2_0, got %v", decoded.Mode.DuplicateKeyAction)
	}
	if !decoded.Mode.ContinueOnError || !decoded.Mode.ValidateConstraints {
		t.Errorf("expected boolean mode fields to round-trip pre-V4_2_0: %+v", decoded.Mode)
	}
	if len(decoded.Items[1].ReturnValues) != 0 {
		t.Errorf("expected no returnValues pre-V4_2_0, got %v", decoded.Items[1].ReturnValues)
	}
}

func TestDecodeModeBitfield_RequiresExactlyOneDuplicateKeyBit(t *testing.T) {
	if _, err := decodeModeBitfield(0); err == nil {
		t.Errorf("expected error when no DUPLICATE_KEY_* bit is set")
	}
	if _, err := decodeModeBitfield(bitDuplicateKeyIgnore | bitDuplicateKeyOverwrite); err == nil {
		t.Errorf("expected error when more than one DUPLICATE_KEY_* bit is set")
	}
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	req := sampleRequest()
	encoded, err := Encode(req, V4_2_0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := append([]byte(nil), encoded...)
	corrupted[0] ^= 0xFF

	if _, err := Decode(corrupted, V4_2_0); err == nil {
		t.Errorf("expected decode to reject a corrupted frame magic")
	}
}
