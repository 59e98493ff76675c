package recordfile

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

type yamlFile struct {
	Lineage     string          `yaml:"lineage"`
	Name        string          `yaml:"name"`
	Predecessor string          `yaml:"predecessor"`
	Operations  []yamlOperation `yaml:"operations"`
}

// yamlOperation is a single-key map: add, remove or alter.
type yamlOperation struct {
	Add    *yamlField `yaml:"add"`
	Remove string     `yaml:"remove"`
	Alter  *yamlField `yaml:"alter"`
}

// yamlField mirrors schema.FieldDefinition but accepts any scalar default, so
// `default: 0` and `default: false` need no quoting.
type yamlField struct {
	Name       string          `yaml:"name"`
	Type       string          `yaml:"type"`
	BaseType   string          `yaml:"base_type"`
	Size       int             `yaml:"size"`
	MaxLength  int             `yaml:"max_length"`
	Nullable   bool            `yaml:"nullable"`
	Blank      bool            `yaml:"blank"`
	Default    any             `yaml:"default"`
	Choices    []schema.Choice `yaml:"choices"`
	Validators []string        `yaml:"validators"`
	HelpText   string          `yaml:"help_text"`
}

func (f *yamlField) definition() *schema.FieldDefinition {
	def := &schema.FieldDefinition{
		Name:       f.Name,
		Type:       schema.FieldType(f.Type),
		BaseType:   schema.FieldType(f.BaseType),
		Size:       f.Size,
		MaxLength:  f.MaxLength,
		Nullable:   f.Nullable,
		Blank:      f.Blank,
		Choices:    f.Choices,
		Validators: f.Validators,
		HelpText:   f.HelpText,
	}
	if f.Default != nil {
		def.Default = schema.StringPtr(fmt.Sprint(f.Default))
	}
	return def
}

func parseYAML(data []byte, filename string) (*registry.AppendRequest, error) {
	var f yamlFile
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("record file %s: %w", filename, err)
	}

	req := &registry.AppendRequest{
		Lineage:     f.Lineage,
		Name:        f.Name,
		Predecessor: f.Predecessor,
	}
	for i, yop := range f.Operations {
		var (
			kind  string
			field string
			def   *schema.FieldDefinition
			set   int
		)
		if yop.Add != nil {
			kind, def, field = string(schema.OpAdd), yop.Add.definition(), yop.Add.Name
			set++
		}
		if yop.Remove != "" {
			kind, field = string(schema.OpRemove), yop.Remove
			set++
		}
		if yop.Alter != nil {
			kind, def, field = string(schema.OpAlter), yop.Alter.definition(), yop.Alter.Name
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("record file %s: operation %d: want exactly one of add, remove or alter", filename, i)
		}
		op, err := operation(filename, i, kind, field, def)
		if err != nil {
			return nil, err
		}
		req.Operations = append(req.Operations, op)
	}
	return req, nil
}
