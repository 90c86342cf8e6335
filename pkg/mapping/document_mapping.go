package mapping

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/DataDog/zstd"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
)

// metadataFieldNames is the hard-coded, case-sensitive metadata field
// set from spec.md §4.1. A source comment in the system this spec was
// distilled from omits _field_names/_seq_no/_version/_source from this
// set; SPEC_FULL.md §"OPEN QUESTION DECISIONS" (a) resolves this by
// keeping the literal set below rather than reconciling it with the
// metadata mappers an index actually installs.
var metadataFieldNames = map[string]bool{
	"_id":        true,
	"_type":      true,
	"_routing":   true,
	"_index":     true,
	"_size":      true,
	"_timestamp": true,
	"_ttl":       true,
	"_ignored":   true,
}

// IsMetadataField reports whether name is one of the hard-coded
// metadata fields.
func IsMetadataField(name string) bool {
	return metadataFieldNames[name]
}

// DocumentMapping is the per-index schema: a root object mapper,
// metadata mappers, and a compressed content source that is its own
// canonical serialization (spec.md §3).
type DocumentMapping struct {
	TypeName       string
	MappingVersion int64

	objectMappers map[string]*ObjectMapper // fullPath -> mapper, including root ("")
	lookup        *FieldTypeLookup
	aliases       map[string]string // alias name -> target field name
	metadataNames []string          // metadata mappers actually installed on this mapping

	contentSource []byte // zstd-compressed canonical serialization
}

// FieldType delegates to the mapping's FieldTypeLookup snapshot.
func (d *DocumentMapping) FieldType(fullName string) (*FieldType, bool) {
	return d.lookup.FieldType(fullName)
}

// MatchPattern delegates to the mapping's FieldTypeLookup snapshot.
func (d *DocumentMapping) MatchPattern(pattern string) []string {
	return d.lookup.MatchPattern(pattern)
}

// ObjectMapper returns the object mapper installed at path, if any.
func (d *DocumentMapping) ObjectMapper(path string) (*ObjectMapper, bool) {
	om, ok := d.objectMappers[path]
	return om, ok
}

// ContentSource returns the compressed canonical serialization.
func (d *DocumentMapping) ContentSource() []byte {
	return d.contentSource
}

// counts returns the quantities spec.md §4.1 rule 2 combines into the
// field-count-limit check: object mappers, field mappers, metadata
// mappers and field-alias mappers.
func (d *DocumentMapping) counts() (objectMappers, fieldMappers, metadataMappers, aliasMappers int) {
	objectMappers = len(d.objectMappers) - 1 // exclude the root
	fieldMappers = len(d.lookup.byName)       // includes metadata field mappers
	metadataMappers = len(d.metadataNames)
	aliasMappers = len(d.aliases)
	return
}

// serialize produces the deterministic, uncompressed canonical byte
// form of the mapping: a sorted field list with its type and markers,
// used both as the "content source" (after zstd compression) and as
// the input to the round-trip invariant check in spec.md §4.1.
func (d *DocumentMapping) serialize() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "type:%s\nversion:%d\n", d.TypeName, d.MappingVersion)

	names := make([]string, 0, len(d.lookup.byName))
	for name := range d.lookup.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ft := d.lookup.byName[name]
		fmt.Fprintf(&buf, "field:%s|kind:%d|nullable:%t|required:%t|generated:%t|genexpr:%s|hasdefault:%t|defaultexpr:%s|idxan:%s|srchan:%s|srchqan:%s\n",
			ft.FullName, int(ft.Kind), ft.Nullable, ft.Required, ft.Generated, ft.GeneratedExpr,
			ft.HasDefault, ft.DefaultExpr, ft.IndexAnalyzer, ft.SearchAnalyzer, ft.SearchQuoteAnalyzer)
	}

	paths := make([]string, 0, len(d.objectMappers))
	for p := range d.objectMappers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		om := d.objectMappers[p]
		fmt.Fprintf(&buf, "object:%s|children:%v\n", om.FullPath, om.Children)
	}

	aliasNames := make([]string, 0, len(d.aliases))
	for a := range d.aliases {
		aliasNames = append(aliasNames, a)
	}
	sort.Strings(aliasNames)
	for _, a := range aliasNames {
		fmt.Fprintf(&buf, "alias:%s->%s\n", a, d.aliases[a])
	}

	metaNames := append([]string(nil), d.metadataNames...)
	sort.Strings(metaNames)
	fmt.Fprintf(&buf, "metadata:%v\n", metaNames)

	return buf.Bytes()
}

// compress produces d.contentSource from serialize()'s output, using
// DataDog/zstd the way the teacher's dependency closure pulls it in
// for the mongo wire codec's compressed payloads — promoted here to a
// direct, explicitly wired dependency for the mapping's own compressed
// content source (spec.md §3).
func (d *DocumentMapping) compress() error {
	raw := d.serialize()
	compressed, err := zstd.Compress(nil, raw)
	if err != nil {
		return mapperrors.WrapInternal(err, "compressing mapping content source")
	}
	d.contentSource = compressed
	return nil
}

// decompressedSerialization returns the uncompressed canonical bytes
// this mapping was built from, for the round-trip invariant check.
func (d *DocumentMapping) decompressedSerialization() ([]byte, error) {
	return zstd.Decompress(nil, d.contentSource)
}
