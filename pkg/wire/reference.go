package wire

import "github.com/arkdb/shardwrite/pkg/types"

// Reference names an insert column and its declared type, the unit
// `insertColumns: [Reference]` is built from (spec.md §3).
type Reference struct {
	Name string
	Type types.DataType
}

func (w *writer) reference(ref Reference) {
	w.str(ref.Name)
	w.uvarint(uint64(ref.Type))
}

func (r *reader) reference() (Reference, error) {
	name, err := r.str()
	if err != nil {
		return Reference{}, err
	}
	kind, err := r.uvarint()
	if err != nil {
		return Reference{}, err
	}
	return Reference{Name: name, Type: types.DataType(kind)}, nil
}
