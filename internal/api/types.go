package api

import (
	"time"

	"github.com/nekidev/nekos-api/internal/apply"
	"github.com/nekidev/nekos-api/internal/jsonapi"
	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// Resource type names.
const (
	typeAPIDetails  = "api-details"
	typeLineage     = "lineage"
	typeRecord      = "schema-record"
	typeSchema      = "schema"
	typeValidation  = "validation"
	typeApplyStatus = "apply-status"
)

// --- Endpoint listing ---

// APIDetails is the body of GET /v2.
type APIDetails struct {
	Type       string               `json:"type"`
	ID         string               `json:"id"`
	Attributes APIDetailsAttributes `json:"attributes"`
}

// APIDetailsAttributes lists the public endpoints and the API version.
type APIDetailsAttributes struct {
	Endpoints  []string `json:"endpoints"`
	APIVersion string   `json:"apiVersion"`
}

// --- Lineage types ---

// LineageAttributes summarises one lineage.
type LineageAttributes struct {
	Tip       string    `json:"tip"`
	Records   int64     `json:"records"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordAttributes is the JSON representation of a schema-change record.
type RecordAttributes struct {
	Lineage     string             `json:"lineage"`
	Name        string             `json:"name"`
	Seq         int64              `json:"seq"`
	Predecessor *string            `json:"predecessor"`
	Operations  []schema.Operation `json:"operations"`
	Checksum    string             `json:"checksum"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SchemaAttributes is the cumulative schema of a lineage at its tip.
type SchemaAttributes struct {
	Tip    *string                  `json:"tip"`
	Fields []schema.FieldDefinition `json:"fields"`
}

// ValidationAttributes is the success body of the row validation endpoint.
type ValidationAttributes struct {
	Valid bool `json:"valid"`
}

// ApplyStatusAttributes reports whether a record reached the target store.
type ApplyStatusAttributes struct {
	Name      string     `json:"name"`
	Seq       int64      `json:"seq"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at"`
}

// --- Requests ---

// AppendRecordRequest is the body of POST /v2/schema/lineages/{lineage}/records.
// The lineage comes from the path.
type AppendRecordRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Name        string             `json:"name"`
			Predecessor *string            `json:"predecessor"`
			Operations  []schema.Operation `json:"operations"`
		} `json:"attributes"`
	} `json:"data"`
}

// ValidateRowRequest is the body of POST /v2/schema/lineages/{lineage}/validate.
type ValidateRowRequest struct {
	Data struct {
		Type       string         `json:"type"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

// --- Documents for swag ---

// LineageListResponse is the document returned by the lineage listing.
type LineageListResponse struct {
	Data []jsonapi.Resource `json:"data"`
}

// RecordListResponse is one page of records.
type RecordListResponse struct {
	Data  []jsonapi.Resource `json:"data"`
	Links *jsonapi.Links     `json:"links,omitempty"`
}

// ResourceResponse wraps a single resource.
type ResourceResponse struct {
	Data jsonapi.Resource `json:"data"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func lineageResource(t registry.LineageTip) jsonapi.Resource {
	return jsonapi.Resource{
		Type: typeLineage,
		ID:   t.Lineage,
		Attributes: LineageAttributes{
			Tip:       t.TipName,
			Records:   t.TipSeq,
			UpdatedAt: t.UpdatedAt,
		},
	}
}

func recordResource(rec *schema.Record) jsonapi.Resource {
	ops := rec.Operations
	if ops == nil {
		ops = []schema.Operation{}
	}
	return jsonapi.Resource{
		Type: typeRecord,
		ID:   rec.ID.String(),
		Attributes: RecordAttributes{
			Lineage:     rec.Lineage,
			Name:        rec.Name,
			Seq:         rec.Seq,
			Predecessor: optional(rec.Predecessor),
			Operations:  ops,
			Checksum:    rec.Checksum,
			CreatedAt:   rec.CreatedAt,
		},
	}
}

func schemaResource(lineage, tip string, s schema.Schema) jsonapi.Resource {
	fields := s.Fields()
	if fields == nil {
		fields = []schema.FieldDefinition{}
	}
	return jsonapi.Resource{
		Type:       typeSchema,
		ID:         lineage,
		Attributes: SchemaAttributes{Tip: optional(tip), Fields: fields},
	}
}

func applyStatusResource(lineage string, st apply.RecordStatus) jsonapi.Resource {
	return jsonapi.Resource{
		Type: typeApplyStatus,
		ID:   lineage + "/" + st.Record,
		Attributes: ApplyStatusAttributes{
			Name:      st.Record,
			Seq:       st.Seq,
			Applied:   st.Applied,
			AppliedAt: st.AppliedAt,
		},
	}
}
