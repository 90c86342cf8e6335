package mapping

import (
	"strconv"
	"strings"

	"github.com/DataDog/zstd"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/types"
)

// Parse reconstructs a DocumentMapping from a previously produced
// content source (spec.md §3 round-trip invariant:
// parse(serialize(M)) == M). It is intentionally independent of the
// in-memory builder state used by merge — it only reads the canonical
// text form serialize() emits, so a genuine corruption or
// non-determinism in serialize() is caught rather than trivially
// passing.
func Parse(contentSource []byte) (*DocumentMapping, error) {
	raw, err := zstd.Decompress(nil, contentSource)
	if err != nil {
		return nil, mapperrors.WrapInternal(err, "decompressing mapping content source")
	}

	d := &DocumentMapping{
		objectMappers: map[string]*ObjectMapper{},
		lookup:        NewFieldTypeLookup(),
		aliases:       map[string]string{},
	}

	var fieldTypes []*FieldType
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "type:"):
			d.TypeName = strings.TrimPrefix(line, "type:")
		case strings.HasPrefix(line, "version:"):
			v, err := strconv.ParseInt(strings.TrimPrefix(line, "version:"), 10, 64)
			if err != nil {
				return nil, mapperrors.WrapInternal(err, "parsing mapping version")
			}
			d.MappingVersion = v
		case strings.HasPrefix(line, "field:"):
			ft, err := parseFieldLine(strings.TrimPrefix(line, "field:"))
			if err != nil {
				return nil, err
			}
			fieldTypes = append(fieldTypes, ft)
		case strings.HasPrefix(line, "object:"):
			om, err := parseObjectLine(strings.TrimPrefix(line, "object:"))
			if err != nil {
				return nil, err
			}
			d.objectMappers[om.FullPath] = om
		case strings.HasPrefix(line, "alias:"):
			body := strings.TrimPrefix(line, "alias:")
			parts := strings.SplitN(body, "->", 2)
			if len(parts) != 2 {
				return nil, &mapperrors.MapperParsingError{Field: "alias", Message: "malformed alias line"}
			}
			d.aliases[parts[0]] = parts[1]
		case strings.HasPrefix(line, "metadata:"):
			d.metadataNames = parseStringSlice(strings.TrimPrefix(line, "metadata:"))
		}
	}

	d.lookup = d.lookup.copyAndAddAll(fieldTypes)

	if err := d.compress(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseFieldLine(body string) (*FieldType, error) {
	parts := strings.Split(body, "|")
	kv := map[string]string{}
	var fullName string
	for i, p := range parts {
		if i == 0 {
			fullName = p
			continue
		}
		idx := strings.Index(p, ":")
		if idx < 0 {
			return nil, &mapperrors.MapperParsingError{Field: "field", Message: "malformed field line"}
		}
		key, val := p[:idx], p[idx+1:]
		kv[key] = val
	}

	kind, err := strconv.Atoi(kv["kind"])
	if err != nil {
		return nil, mapperrors.WrapInternal(err, "parsing field kind")
	}

	return &FieldType{
		FullName:            fullName,
		Kind:                types.DataType(kind),
		Nullable:            kv["nullable"] == "true",
		Required:            kv["required"] == "true",
		Generated:           kv["generated"] == "true",
		GeneratedExpr:       kv["genexpr"],
		HasDefault:          kv["hasdefault"] == "true",
		DefaultExpr:         kv["defaultexpr"],
		IndexAnalyzer:       AnalyzerRef(kv["idxan"]),
		SearchAnalyzer:      AnalyzerRef(kv["srchan"]),
		SearchQuoteAnalyzer: AnalyzerRef(kv["srchqan"]),
	}, nil
}

func parseObjectLine(body string) (*ObjectMapper, error) {
	idx := strings.Index(body, "|children:")
	if idx < 0 {
		return nil, &mapperrors.MapperParsingError{Field: "object", Message: "malformed object line"}
	}
	path := body[:idx]
	children := parseStringSlice(body[idx+len("|children:"):])
	return &ObjectMapper{FullPath: path, Children: children}, nil
}

// parseStringSlice parses the fmt.Sprintf("%v", []string{...}) form
// emitted by serialize(): "[a b c]" or "[]".
func parseStringSlice(s string) []string {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}
