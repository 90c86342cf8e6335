package wire

import (
	"fmt"

	"github.com/arkdb/shardwrite/pkg/sourcegen"
	"github.com/arkdb/shardwrite/pkg/types"
)

// Item is one row of a ShardWriteRequest (spec.md §3). Source is
// nullable: set by the primary, consumed on the replica path, and
// skipped there when absent.
type Item struct {
	ID                string
	Version           int64
	SeqNo             int64
	PrimaryTerm       int64
	UpdateAssignments []sourcegen.Assignment // nil if absent
	InsertValues      []types.Comparable      // nil if absent
	Source            []byte                  // nil if absent
	ReturnValues      []sourcegen.Expression  // only meaningful >= V4_2_0
}

// Request is the full ShardWriteRequest (spec.md §3).
type Request struct {
	ShardID         string
	JobID           string
	UpdateColumns   []string
	InsertColumns   []Reference
	Mode            Mode
	SessionSettings map[string]string
	Items           []Item
}

// Encode serializes req for protocolVersion, gating the mode encoding
// at the V4_2_0 boundary (spec.md §4.6). The result is wrapped in a
// fixed frame header (see frame.go), matching the teacher's
// header-then-payload WAL entry layout.
func Encode(req *Request, protocolVersion ProtocolVersion) ([]byte, error) {
	if len(req.UpdateColumns) == 0 && len(req.InsertColumns) == 0 {
		return nil, fmt.Errorf("shard write request must declare updateColumns or insertColumns")
	}

	w := &writer{}
	w.str(req.ShardID)
	w.str(req.JobID)

	w.uvarint(uint64(len(req.UpdateColumns)))
	for _, c := range req.UpdateColumns {
		w.str(c)
	}

	w.uvarint(uint64(len(req.InsertColumns)))
	for _, ref := range req.InsertColumns {
		w.reference(ref)
	}

	if protocolVersion >= V4_2_0 {
		bits, err := encodeModeBitfield(req.Mode)
		if err != nil {
			return nil, err
		}
		w.fixedInt32(bits)
	} else {
		w.bool(req.Mode.ContinueOnError)
		w.uvarint(uint64(req.Mode.DuplicateKeyAction))
		w.bool(req.Mode.ValidateConstraints)
	}

	w.uvarint(uint64(len(req.SessionSettings)))
	for k, v := range req.SessionSettings {
		w.str(k)
		w.str(v)
	}

	w.uvarint(uint64(len(req.Items)))
	for i := range req.Items {
		if err := w.item(&req.Items[i], req.InsertColumns, protocolVersion); err != nil {
			return nil, err
		}
	}

	return wrapFrame(w.buf), nil
}

// Decode parses data produced by Encode and returns the request.
// protocolVersion must be the version the data was encoded for; it is
// not recorded in the payload.
func Decode(data []byte, protocolVersion ProtocolVersion) (*Request, error) {
	payload, err := unwrapFrame(data)
	if err != nil {
		return nil, err
	}

	r := &reader{buf: payload}
	req := &Request{}

	if req.ShardID, err = r.str(); err != nil {
		return nil, err
	}
	if req.JobID, err = r.str(); err != nil {
		return nil, err
	}

	updateCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < updateCount; i++ {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		req.UpdateColumns = append(req.UpdateColumns, s)
	}

	insertColCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < insertColCount; i++ {
		ref, err := r.reference()
		if err != nil {
			return nil, err
		}
		req.InsertColumns = append(req.InsertColumns, ref)
	}

	if protocolVersion >= V4_2_0 {
		bits, err := r.fixedInt32()
		if err != nil {
			return nil, err
		}
		req.Mode, err = decodeModeBitfield(bits)
		if err != nil {
			return nil, err
		}
	} else {
		req.Mode.ContinueOnError, err = r.bool()
		if err != nil {
			return nil, err
		}
		action, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		req.Mode.DuplicateKeyAction = DuplicateKeyAction(action)
		req.Mode.ValidateConstraints, err = r.bool()
		if err != nil {
			return nil, err
		}
	}

	settingsCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if settingsCount > 0 {
		req.SessionSettings = make(map[string]string, settingsCount)
	}
	for i := uint64(0); i < settingsCount; i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := r.str()
		if err != nil {
			return nil, err
		}
		req.SessionSettings[k] = v
	}

	itemCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < itemCount; i++ {
		item, err := r.item(req.InsertColumns, protocolVersion)
		if err != nil {
			return nil, err
		}
		req.Items = append(req.Items, *item)
	}

	return req, nil
}

func (w *writer) item(it *Item, insertColumns []Reference, protocolVersion ProtocolVersion) error {
	w.str(it.ID)
	w.fixedInt64(it.Version)
	w.fixedInt64(it.SeqNo)
	w.fixedInt64(it.PrimaryTerm)

	hasAssignments := it.UpdateAssignments != nil
	w.bool(hasAssignments)
	if hasAssignments {
		w.uvarint(uint64(len(it.UpdateAssignments)))
		for _, a := range it.UpdateAssignments {
			w.str(a.Column)
			if err := w.expression(a.Expression); err != nil {
				return err
			}
		}
	}

	w.uvarint(uint64(len(it.InsertValues)))
	for i, v := range it.InsertValues {
		if i >= len(insertColumns) {
			return fmt.Errorf("item %q has more insertValues than declared insertColumns", it.ID)
		}
		if err := w.writeValue(insertColumns[i].Type, v); err != nil {
			return err
		}
	}

	hasSource := it.Source != nil
	w.bool(hasSource)
	if hasSource {
		w.bytes(it.Source)
	}

	if protocolVersion >= V4_2_0 {
		w.uvarint(uint64(len(it.ReturnValues)))
		for _, expr := range it.ReturnValues {
			if err := w.expression(expr); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *reader) item(insertColumns []Reference, protocolVersion ProtocolVersion) (*Item, error) {
	it := &Item{}
	var err error
	if it.ID, err = r.str(); err != nil {
		return nil, err
	}
	if it.Version, err = r.fixedInt64(); err != nil {
		return nil, err
	}
	if it.SeqNo, err = r.fixedInt64(); err != nil {
		return nil, err
	}
	if it.PrimaryTerm, err = r.fixedInt64(); err != nil {
		return nil, err
	}

	hasAssignments, err := r.bool()
	if err != nil {
		return nil, err
	}
	if hasAssignments {
		count, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		it.UpdateAssignments = make([]sourcegen.Assignment, 0, count)
		for i := uint64(0); i < count; i++ {
			col, err := r.str()
			if err != nil {
				return nil, err
			}
			expr, err := r.expression()
			if err != nil {
				return nil, err
			}
			it.UpdateAssignments = append(it.UpdateAssignments, sourcegen.Assignment{Column: col, Expression: expr})
		}
	}

	valueCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < valueCount; i++ {
		if int(i) >= len(insertColumns) {
			return nil, fmt.Errorf("item %q has more insertValues than declared insertColumns", it.ID)
		}
		v, err := r.readValue(insertColumns[i].Type)
		if err != nil {
			return nil, err
		}
		it.InsertValues = append(it.InsertValues, v)
	}

	hasSource, err := r.bool()
	if err != nil {
		return nil, err
	}
	if hasSource {
		if it.Source, err = r.bytes(); err != nil {
			return nil, err
		}
	}

	if protocolVersion >= V4_2_0 {
		count, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < count; i++ {
			expr, err := r.expression()
			if err != nil {
				return nil, err
			}
			it.ReturnValues = append(it.ReturnValues, expr)
		}
	}

	return it, nil
}
