package mapping

import (
	"strings"

	mapperrors "github.com/arkdb/shardwrite/pkg/errors"
	"github.com/arkdb/shardwrite/pkg/types"
)

// validateTypeName enforces spec.md §4.1 rule 1.
func validateTypeName(name string) error {
	switch {
	case name == "":
		return &mapperrors.InvalidTypeNameError{Name: name, Reason: "type name may not be empty"}
	case len(name) > 255:
		return &mapperrors.InvalidTypeNameError{Name: name, Reason: "type name may not exceed 255 characters"}
	case strings.ContainsAny(name, "#,"):
		return &mapperrors.InvalidTypeNameError{Name: name, Reason: "type name may not contain '#' or ','"}
	case strings.HasPrefix(name, "."):
		return &mapperrors.InvalidTypeNameError{Name: name, Reason: "type name may not begin with '.'"}
	case strings.HasPrefix(name, "_") && name != "_doc":
		return &mapperrors.InvalidTypeNameError{Name: name, Reason: "type name may not begin with '_', except the reserved name _doc"}
	}
	return nil
}

// buildFromRaw flattens a RawMapping into the objectMappers/lookup/
// aliases representation buildMapping merges against the live state.
func buildFromRaw(raw RawMapping) (*DocumentMapping, error) {
	d := &DocumentMapping{
		TypeName:      raw.TypeName,
		objectMappers: map[string]*ObjectMapper{},
		lookup:        NewFieldTypeLookup(),
		aliases:       map[string]string{},
	}

	var fieldTypes []*FieldType
	var walk func(path string, obj RawObject) error
	walk = func(path string, obj RawObject) error {
		full := path
		if obj.Name != "" {
			full = joinPath(path, obj.Name)
		}
		om := &ObjectMapper{FullPath: full}
		for _, f := range obj.Fields {
			fieldPath := joinPath(full, f.Name)
			fieldTypes = append(fieldTypes, &FieldType{
				FullName:            fieldPath,
				Kind:                f.Type,
				Nullable:            f.Nullable,
				Required:            f.Required,
				Generated:           f.Generated,
				GeneratedExpr:       f.GeneratedExpr,
				HasDefault:          f.HasDefault,
				DefaultExpr:         f.DefaultExpr,
				IndexAnalyzer:       AnalyzerRef(f.IndexAnalyzer),
				SearchAnalyzer:      AnalyzerRef(f.SearchAnalyzer),
				SearchQuoteAnalyzer: AnalyzerRef(f.SearchQuoteAnalyzer),
			})
			om.Children = append(om.Children, f.Name)
		}
		for _, a := range obj.Aliases {
			if _, exists := d.aliases[a.Name]; !exists {
				d.aliases[a.Name] = a.Target
			}
		}
		for _, child := range obj.Children {
			om.Children = append(om.Children, child.Name)
			if err := walk(full, child); err != nil {
				return err
			}
		}
		d.objectMappers[full] = om
		return nil
	}

	if err := walk("", raw.Root); err != nil {
		return nil, err
	}

	for name := range metadataFieldNames {
		fieldTypes = append(fieldTypes, &FieldType{FullName: name, Kind: types.TypeVarchar})
		d.metadataNames = append(d.metadataNames, name)
	}
	d.lookup = d.lookup.copyAndAddAll(fieldTypes)

	return d, nil
}

// mergeDocumentMappings produces N = old.merge(incoming), per
// spec.md §4.1 "Merge semantics." A nil old (first install) simply
// adopts incoming's definitions.
func mergeDocumentMappings(old, incoming *DocumentMapping) (*DocumentMapping, error) {
	merged := &DocumentMapping{
		TypeName:      incoming.TypeName,
		objectMappers: map[string]*ObjectMapper{},
		lookup:        NewFieldTypeLookup(),
		aliases:       map[string]string{},
	}

	if old != nil {
		merged.MappingVersion = old.MappingVersion
		for path, om := range old.objectMappers {
			merged.objectMappers[path] = om
		}
		for name, ft := range old.lookup.byName {
			merged.lookup.byName[name] = ft
		}
		for k, v := range old.aliases {
			merged.aliases[k] = v
		}
		merged.metadataNames = append(merged.metadataNames, old.metadataNames...)
	} else {
		merged.lookup.byName = map[string]*FieldType{}
	}

	// Object mappers: merge child sets path by path.
	for path, incomingOM := range incoming.objectMappers {
		if existing, ok := merged.objectMappers[path]; ok {
			merged.objectMappers[path] = existing.merge(incomingOM)
		} else {
			merged.objectMappers[path] = incomingOM
		}
	}

	// Field mappers: merge, with conflicts surfacing as merge errors
	// (spec.md §4.1 rule 5).
	var newFieldTypes []*FieldType
	for name, incomingFT := range incoming.lookup.byName {
		if existing, ok := merged.lookup.byName[name]; ok {
			mergedFT, err := existing.merge(incomingFT)
			if err != nil {
				return nil, &mapperrors.MapperParsingError{Field: name, Message: err.Error()}
			}
			newFieldTypes = append(newFieldTypes, mergedFT)
		} else {
			newFieldTypes = append(newFieldTypes, incomingFT)
		}
	}
	merged.lookup = merged.lookup.copyAndAddAll(newFieldTypes)

	// Aliases: no alias colliding with a field, none targeting a
	// nonexistent field (spec.md §4.1 rule 5).
	for aliasName, target := range incoming.aliases {
		if _, isField := merged.lookup.byName[aliasName]; isField {
			return nil, &mapperrors.MapperParsingError{Field: aliasName, Message: "alias collides with an existing field"}
		}
		if _, targetExists := merged.lookup.byName[target]; !targetExists {
			return nil, &mapperrors.MapperParsingError{Field: aliasName, Message: "alias targets a non-existent field: " + target}
		}
		merged.aliases[aliasName] = target
	}

	if len(merged.metadataNames) == 0 {
		for name := range metadataFieldNames {
			merged.metadataNames = append(merged.metadataNames, name)
		}
	}

	return merged, nil
}
