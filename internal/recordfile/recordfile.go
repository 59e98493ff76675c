// Package recordfile loads schema-change records authored as YAML or HCL files.
package recordfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// Load reads the record file at path. The format is chosen by extension:
// .yaml and .yml are YAML, .hcl is HCL. A non-empty lineage fills in or must
// match the lineage named in the file.
func Load(path, lineage string) (*registry.AppendRequest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied record file
	if err != nil {
		return nil, fmt.Errorf("read record file %s: %w", path, err)
	}
	return Parse(data, path, lineage)
}

// Parse decodes a record file already in memory. filename selects the format
// and appears in error messages.
func Parse(data []byte, filename, lineage string) (*registry.AppendRequest, error) {
	var (
		req *registry.AppendRequest
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		req, err = parseYAML(data, filename)
	case ".hcl":
		req, err = parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("record file %s: unsupported extension %q (want .yaml, .yml or .hcl)", filename, ext)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case lineage == "" && req.Lineage == "":
		return nil, fmt.Errorf("record file %s: no lineage given", filename)
	case lineage != "" && req.Lineage == "":
		req.Lineage = lineage
	case lineage != "" && req.Lineage != lineage:
		return nil, fmt.Errorf("record file %s: declares lineage %q, expected %q", filename, req.Lineage, lineage)
	}
	return req, nil
}

// operation builds a schema operation from a decoded kind, field name and
// optional definition.
func operation(filename string, idx int, kind, field string, def *schema.FieldDefinition) (schema.Operation, error) {
	switch schema.OperationKind(kind) {
	case schema.OpRemove:
		if def != nil {
			return schema.Operation{}, fmt.Errorf("record file %s: operation %d: remove takes only a field name", filename, idx)
		}
		return schema.RemoveField(field), nil
	case schema.OpAdd, schema.OpAlter:
		if def == nil {
			return schema.Operation{}, fmt.Errorf("record file %s: operation %d: %s needs a field definition", filename, idx, kind)
		}
		if def.Name == "" {
			def.Name = field
		}
		return schema.Operation{Kind: schema.OperationKind(kind), Field: def.Name, Definition: def}, nil
	}
	return schema.Operation{}, fmt.Errorf("record file %s: operation %d: unknown kind %q", filename, idx, kind)
}
