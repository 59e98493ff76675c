package recordfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// hclRecordFile is the top-level structure of an HCL record file:
//
//	record "0002_verification_status" {
//	  lineage     = "images"
//	  predecessor = "0001_initial"
//
//	  operation "remove" "is_verified" {}
//	  operation "add" "verification_status" {
//	    type       = "string"
//	    max_length = 12
//	    default    = "not_reviewed"
//	    choice "not_reviewed" { label = "Not Reviewed" }
//	  }
//	}
//
// Operations share one block type so their order survives decoding.
type hclRecordFile struct {
	Records []*hclRecord `hcl:"record,block"`
}

type hclRecord struct {
	Name        string          `hcl:"name,label"`
	Lineage     string          `hcl:"lineage,optional"`
	Predecessor string          `hcl:"predecessor,optional"`
	Operations  []*hclOperation `hcl:"operation,block"`
}

type hclOperation struct {
	Kind  string `hcl:"kind,label"`
	Field string `hcl:"field,label"`

	Type       string       `hcl:"type,optional"`
	BaseType   string       `hcl:"base_type,optional"`
	Size       int          `hcl:"size,optional"`
	MaxLength  int          `hcl:"max_length,optional"`
	Nullable   bool         `hcl:"nullable,optional"`
	Blank      bool         `hcl:"blank,optional"`
	Default    *cty.Value   `hcl:"default,optional"`
	Validators []string     `hcl:"validators,optional"`
	HelpText   string       `hcl:"help_text,optional"`
	Choices    []*hclChoice `hcl:"choice,block"`
}

type hclChoice struct {
	Value string `hcl:"value,label"`
	Label string `hcl:"label,optional"`
}

func (o *hclOperation) hasDefinition() bool {
	return o.Type != "" || o.BaseType != "" || o.Size != 0 || o.MaxLength != 0 ||
		o.Nullable || o.Blank || (o.Default != nil && !o.Default.IsNull()) ||
		len(o.Validators) > 0 || o.HelpText != "" || len(o.Choices) > 0
}

func (o *hclOperation) definition() (*schema.FieldDefinition, error) {
	def := &schema.FieldDefinition{
		Name:       o.Field,
		Type:       schema.FieldType(o.Type),
		BaseType:   schema.FieldType(o.BaseType),
		Size:       o.Size,
		MaxLength:  o.MaxLength,
		Nullable:   o.Nullable,
		Blank:      o.Blank,
		Validators: o.Validators,
		HelpText:   o.HelpText,
	}
	for _, c := range o.Choices {
		def.Choices = append(def.Choices, schema.Choice{Value: c.Value, Label: c.Label})
	}
	if o.Default != nil && !o.Default.IsNull() {
		s, err := convert.Convert(*o.Default, cty.String)
		if err != nil {
			return nil, fmt.Errorf("default of %s: %w", o.Field, err)
		}
		def.Default = schema.StringPtr(s.AsString())
	}
	return def, nil
}

func parseHCL(data []byte, filename string) (*registry.AppendRequest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclRecordFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if len(parsed.Records) != 1 {
		return nil, fmt.Errorf("record file %s: want exactly one record block, got %d", filename, len(parsed.Records))
	}

	rec := parsed.Records[0]
	req := &registry.AppendRequest{
		Lineage:     rec.Lineage,
		Name:        rec.Name,
		Predecessor: rec.Predecessor,
	}
	for i, hop := range rec.Operations {
		var def *schema.FieldDefinition
		if hop.hasDefinition() {
			d, err := hop.definition()
			if err != nil {
				return nil, fmt.Errorf("record file %s: operation %d: %w", filename, i, err)
			}
			def = d
		}
		op, err := operation(filename, i, hop.Kind, hop.Field, def)
		if err != nil {
			return nil, err
		}
		req.Operations = append(req.Operations, op)
	}
	return req, nil
}
