package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekidev/nekos-api/internal/schema"
)

func verificationStatus() schema.FieldDefinition {
	return schema.FieldDefinition{
		Name:      "verification_status",
		Type:      schema.TypeString,
		MaxLength: 12,
		Default:   schema.StringPtr("not_reviewed"),
		Choices: []schema.Choice{
			{Value: "not_reviewed", Label: "Not Reviewed"},
			{Value: "on_review", Label: "On Review"},
			{Value: "declined", Label: "Declined"},
			{Value: "verified", Label: "Verified"},
		},
		HelpText: "The image's verification status.",
	}
}

func rgbField(name string) schema.FieldDefinition {
	return schema.FieldDefinition{
		Name:       name,
		Type:       schema.TypeArray,
		BaseType:   schema.TypeSmallInteger,
		Size:       3,
		Nullable:   true,
		Blank:      true,
		Validators: []string{"rgb_value"},
	}
}

func TestSchemaApply_Fold(t *testing.T) {
	var s schema.Schema

	s, err := s.Apply(schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeString, MaxLength: 100}))
	require.NoError(t, err)
	s, err = s.Apply(schema.AddField(schema.FieldDefinition{Name: "is_verified", Type: schema.TypeBoolean}))
	require.NoError(t, err)
	s, err = s.Apply(schema.RemoveField("is_verified"))
	require.NoError(t, err)
	s, err = s.Apply(schema.AddField(verificationStatus()))
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "verification_status"}, s.Names())

	_, err = s.Apply(schema.RemoveField("is_verified"))
	assert.Error(t, err)
	_, err = s.Apply(schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeText}))
	assert.Error(t, err)
	_, err = s.Apply(schema.AlterField(schema.FieldDefinition{Name: "missing", Type: schema.TypeText}))
	assert.Error(t, err)
}

func TestSchemaApply_DoesNotMutateReceiver(t *testing.T) {
	base, err := schema.Schema{}.Apply(schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeText}))
	require.NoError(t, err)

	altered, err := base.Apply(schema.AlterField(schema.FieldDefinition{Name: "title", Type: schema.TypeString, MaxLength: 10}))
	require.NoError(t, err)

	before, _ := base.Field("title")
	after, _ := altered.Field("title")
	assert.Equal(t, schema.TypeText, before.Type)
	assert.Equal(t, schema.TypeString, after.Type)
}

func TestSchemaApply_AlterKeepsPosition(t *testing.T) {
	s, err := schema.Materialize([]*schema.Record{{
		Name: "0001_initial",
		Operations: []schema.Operation{
			schema.AddField(schema.FieldDefinition{Name: "primary_color", Type: schema.TypeText, Nullable: true}),
			schema.AddField(schema.FieldDefinition{Name: "dominant_color", Type: schema.TypeText, Nullable: true}),
		},
	}, {
		Name:        "0002_colors",
		Predecessor: "0001_initial",
		Operations:  []schema.Operation{schema.AlterField(rgbField("primary_color"))},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"primary_color", "dominant_color"}, s.Names())
	f, ok := s.Field("primary_color")
	require.True(t, ok)
	assert.Equal(t, schema.TypeArray, f.Type)
	assert.Equal(t, 3, f.Size)
}

func TestMaterialize_OrderSensitive(t *testing.T) {
	add := &schema.Record{Name: "a", Operations: []schema.Operation{
		schema.AddField(schema.FieldDefinition{Name: "x", Type: schema.TypeText}),
	}}
	remove := &schema.Record{Name: "b", Operations: []schema.Operation{schema.RemoveField("x")}}

	s, err := schema.Materialize([]*schema.Record{add, remove})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, err = schema.Materialize([]*schema.Record{remove, add})
	assert.Error(t, err)
}

func TestCheckRecord(t *testing.T) {
	current, err := schema.Schema{}.Apply(schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeString, MaxLength: 200, Blank: true, Default: schema.StringPtr("")}))
	require.NoError(t, err)

	badDefault := verificationStatus()
	badDefault.Default = schema.StringPtr("pending")

	longChoice := verificationStatus()
	longChoice.MaxLength = 5

	dupChoice := verificationStatus()
	dupChoice.Choices = append(dupChoice.Choices, schema.Choice{Value: "verified"})

	noSize := rgbField("primary_color")
	noSize.Size = 0

	textArray := rgbField("primary_color")
	textArray.BaseType = schema.TypeText

	unknownValidator := rgbField("primary_color")
	unknownValidator.Validators = []string{"hex_colour"}

	tests := []struct {
		name    string
		lineage string
		ops     []schema.Operation
		wantErr bool
	}{
		{name: "add categorical", lineage: "images", ops: []schema.Operation{schema.AddField(verificationStatus())}},
		{name: "add rgb array", lineage: "images", ops: []schema.Operation{schema.AddField(rgbField("primary_color"))}},
		{name: "remove then add other", lineage: "images", ops: []schema.Operation{
			schema.RemoveField("title"), schema.AddField(verificationStatus()),
		}},
		{name: "empty ops", lineage: "images", ops: nil, wantErr: true},
		{name: "bad lineage name", lineage: "Images", ops: []schema.Operation{schema.AddField(verificationStatus())}, wantErr: true},
		{name: "remove missing", lineage: "images", ops: []schema.Operation{schema.RemoveField("is_verified")}, wantErr: true},
		{name: "alter missing", lineage: "images", ops: []schema.Operation{schema.AlterField(rgbField("dominant_color"))}, wantErr: true},
		{name: "add duplicate", lineage: "images", ops: []schema.Operation{schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeText, Nullable: true})}, wantErr: true},
		{name: "default outside choices", lineage: "images", ops: []schema.Operation{schema.AddField(badDefault)}, wantErr: true},
		{name: "choice longer than max_length", lineage: "images", ops: []schema.Operation{schema.AddField(longChoice)}, wantErr: true},
		{name: "duplicate choice", lineage: "images", ops: []schema.Operation{schema.AddField(dupChoice)}, wantErr: true},
		{name: "array without size", lineage: "images", ops: []schema.Operation{schema.AddField(noSize)}, wantErr: true},
		{name: "array of text", lineage: "images", ops: []schema.Operation{schema.AddField(textArray)}, wantErr: true},
		{name: "unknown validator", lineage: "images", ops: []schema.Operation{schema.AddField(unknownValidator)}, wantErr: true},
		{name: "reserved id", lineage: "images", ops: []schema.Operation{schema.AddField(schema.FieldDefinition{Name: "id", Type: schema.TypeInteger, Nullable: true})}, wantErr: true},
		{name: "not null without default", lineage: "images", ops: []schema.Operation{schema.AddField(schema.FieldDefinition{Name: "width", Type: schema.TypeInteger})}, wantErr: true},
		{name: "integer default must parse", lineage: "images", ops: []schema.Operation{schema.AddField(schema.FieldDefinition{Name: "width", Type: schema.TypeInteger, Default: schema.StringPtr("wide")})}, wantErr: true},
		{name: "reference after remove", lineage: "images", ops: []schema.Operation{
			schema.RemoveField("title"),
			schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeText, Nullable: true}),
		}, wantErr: true},
		{name: "definition name mismatch", lineage: "images", ops: []schema.Operation{{
			Kind: schema.OpAdd, Field: "a", Definition: &schema.FieldDefinition{Name: "b", Type: schema.TypeText, Nullable: true},
		}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.CheckRecord(tt.lineage, current, true, tt.ops)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, schema.ErrValidation), "want ValidationError, got %v", err)

			var ve *schema.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestCheckRecord_RootAllowsRequiredWithoutDefault(t *testing.T) {
	_, err := schema.CheckRecord("images", schema.Schema{}, false, []schema.Operation{
		schema.AddField(schema.FieldDefinition{Name: "width", Type: schema.TypeInteger}),
	})
	assert.NoError(t, err)
}

func TestSuggestName(t *testing.T) {
	tests := []struct {
		name string
		seq  int64
		ops  []schema.Operation
		want string
	}{
		{name: "single add", seq: 12, ops: []schema.Operation{schema.AddField(schema.FieldDefinition{Name: "title"})}, want: "0012_title"},
		{name: "two ops", seq: 2, ops: []schema.Operation{schema.RemoveField("a"), schema.AlterField(schema.FieldDefinition{Name: "b"})}, want: "0002_remove_a_alter_b"},
		{name: "and more", seq: 13, ops: []schema.Operation{
			schema.RemoveField("is_verified"),
			schema.AddField(verificationStatus()),
			schema.AlterField(rgbField("dominant_color")),
		}, want: "0013_remove_is_verified_verification_status_and_more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.SuggestName(tt.seq, tt.ops))
		})
	}
}

func TestChecksum_StableAndSensitive(t *testing.T) {
	ops := []schema.Operation{schema.AddField(verificationStatus())}
	a := schema.Checksum("images", "0001_x", "", ops)
	b := schema.Checksum("images", "0001_x", "", ops)
	c := schema.Checksum("images", "0001_x", "0000_y", ops)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)

	r := &schema.Record{Lineage: "images", Name: "0001_x", Operations: ops, Checksum: a}
	assert.NoError(t, r.VerifyChecksum())
	r.Name = "0001_z"
	assert.Error(t, r.VerifyChecksum())
}

func TestCheckRecord_MaxLengthCountsCharacters(t *testing.T) {
	status := schema.FieldDefinition{
		Name: "mood", Type: schema.TypeString, MaxLength: 4,
		Default: schema.StringPtr("ねこです"),
		Choices: []schema.Choice{{Value: "ねこです", Label: "Cat"}, {Value: "いぬ", Label: "Dog"}},
	}
	_, err := schema.CheckRecord("moods", schema.Schema{}, false, []schema.Operation{schema.AddField(status)})
	assert.NoError(t, err)

	status.MaxLength = 3
	_, err = schema.CheckRecord("moods", schema.Schema{}, false, []schema.Operation{schema.AddField(status)})
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestFieldCheck(t *testing.T) {
	rgb := rgbField("primary_color")
	status := verificationStatus()

	tests := []struct {
		name    string
		def     schema.FieldDefinition
		value   any
		wantErr bool
	}{
		{name: "rgb ok", def: rgb, value: []any{float64(255), float64(0), float64(12)}},
		{name: "rgb null allowed", def: rgb, value: nil},
		{name: "rgb channel too large", def: rgb, value: []any{float64(256), float64(0), float64(0)}, wantErr: true},
		{name: "rgb negative", def: rgb, value: []any{float64(-1), float64(0), float64(0)}, wantErr: true},
		{name: "rgb wrong size", def: rgb, value: []any{float64(1), float64(2)}, wantErr: true},
		{name: "rgb fractional", def: rgb, value: []any{1.5, float64(2), float64(3)}, wantErr: true},
		{name: "choice ok", def: status, value: "on_review"},
		{name: "choice unknown", def: status, value: "pending", wantErr: true},
		{name: "choice null", def: status, value: nil, wantErr: true},
		{name: "small int range", def: schema.FieldDefinition{Name: "n", Type: schema.TypeSmallInteger}, value: float64(40000), wantErr: true},
		{name: "timestamp ok", def: schema.FieldDefinition{Name: "t", Type: schema.TypeTimestamp}, value: "2023-02-10T05:39:00Z"},
		{name: "timestamp bad", def: schema.FieldDefinition{Name: "t", Type: schema.TypeTimestamp}, value: "yesterday", wantErr: true},
		{name: "blank string rejected", def: schema.FieldDefinition{Name: "s", Type: schema.TypeText}, value: "", wantErr: true},
		{name: "blank string allowed", def: schema.FieldDefinition{Name: "s", Type: schema.TypeText, Blank: true}, value: ""},
		{name: "max_length counts characters", def: schema.FieldDefinition{Name: "s", Type: schema.TypeString, MaxLength: 4}, value: "ねこです"},
		{name: "max_length exceeded", def: schema.FieldDefinition{Name: "s", Type: schema.TypeString, MaxLength: 3}, value: "ねこです", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Check(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckRow(t *testing.T) {
	s, err := schema.Materialize([]*schema.Record{{
		Name: "0001_initial",
		Operations: []schema.Operation{
			schema.AddField(verificationStatus()),
			schema.AddField(rgbField("primary_color")),
			schema.AddField(schema.FieldDefinition{Name: "title", Type: schema.TypeString, MaxLength: 10}),
		},
	}})
	require.NoError(t, err)

	errs := s.CheckRow(map[string]any{
		"id":            float64(1),
		"title":         "ok",
		"primary_color": []any{float64(1), float64(2), float64(300)},
		"unexpected":    true,
	})
	require.Len(t, errs, 2)
	assert.Equal(t, "primary_color", errs[0].Field)
	assert.Equal(t, "unexpected", errs[1].Field)

	errs = s.CheckRow(map[string]any{})
	require.Len(t, errs, 1)
	assert.Equal(t, "title", errs[0].Field)
}

func TestRegisterValidator(t *testing.T) {
	schema.RegisterValidator("even", func(v any) error {
		if n, ok := v.(float64); ok && int(n)%2 == 0 {
			return nil
		}
		return errors.New("not even")
	})
	assert.Contains(t, schema.Validators(), "even")

	def := schema.FieldDefinition{Name: "n", Type: schema.TypeInteger, Validators: []string{"even"}}
	require.NoError(t, schema.ValidateDefinition("images", def))
	assert.NoError(t, def.Check(float64(4)))
	assert.Error(t, def.Check(float64(3)))
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("constraint failed")
	var err error = &schema.ApplyError{Lineage: "images", Record: "0002_x", Err: cause}
	assert.True(t, errors.Is(err, schema.ErrApply))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, schema.ErrOrdering))

	err = &schema.OrderingError{Lineage: "images", Expected: "0001_a", Got: ""}
	assert.True(t, errors.Is(err, schema.ErrOrdering))
	assert.Contains(t, err.Error(), "<root>")
}
