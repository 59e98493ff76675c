package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// reservedFields are managed by the apply-engine and cannot be declared.
var reservedFields = map[string]bool{
	"id": true,
}

// ValidateLineageName checks that lineage can be used as a table name.
func ValidateLineageName(lineage string) error {
	if !identRe.MatchString(lineage) {
		return invalid(lineage, "", "lineage name must match %s", identRe.String())
	}
	return nil
}

// CheckRecord validates ops against the cumulative schema current and returns
// the schema after they are applied. hasPrior is true when the lineage already
// has at least one record, in which case existing rows may need defaults.
func CheckRecord(lineage string, current Schema, hasPrior bool, ops []Operation) (Schema, error) {
	if err := ValidateLineageName(lineage); err != nil {
		return Schema{}, err
	}
	if len(ops) == 0 {
		return Schema{}, invalid(lineage, "", "record must contain at least one operation")
	}

	removed := make(map[string]bool)
	s := current
	for _, op := range ops {
		if removed[op.Field] {
			return Schema{}, invalid(lineage, op.Field, "field was removed earlier in the same record")
		}

		switch op.Kind {
		case OpAdd:
			if s.Has(op.Field) {
				return Schema{}, invalid(lineage, op.Field, "field already exists")
			}
			if err := checkDefinition(lineage, op); err != nil {
				return Schema{}, err
			}
			def := op.Definition
			if hasPrior && !def.Nullable && def.Default == nil {
				return Schema{}, invalid(lineage, op.Field, "non-nullable field added to an existing entity needs a default")
			}
		case OpRemove:
			if !s.Has(op.Field) {
				return Schema{}, invalid(lineage, op.Field, "cannot remove a field that does not exist")
			}
			if op.Definition != nil {
				return Schema{}, invalid(lineage, op.Field, "remove takes no definition")
			}
			removed[op.Field] = true
		case OpAlter:
			if !s.Has(op.Field) {
				return Schema{}, invalid(lineage, op.Field, "cannot alter a field that does not exist")
			}
			if err := checkDefinition(lineage, op); err != nil {
				return Schema{}, err
			}
		default:
			return Schema{}, invalid(lineage, op.Field, "unknown operation kind %q", op.Kind)
		}

		next, err := s.Apply(op)
		if err != nil {
			return Schema{}, invalid(lineage, op.Field, "%v", err)
		}
		s = next
	}
	return s, nil
}

func checkDefinition(lineage string, op Operation) error {
	def := op.Definition
	if def == nil {
		return invalid(lineage, op.Field, "%s requires a field definition", op.Kind)
	}
	if def.Name != op.Field {
		return invalid(lineage, op.Field, "definition name %q does not match operation field", def.Name)
	}
	return ValidateDefinition(lineage, *def)
}

// ValidateDefinition checks a field definition in isolation.
func ValidateDefinition(lineage string, def FieldDefinition) error {
	name := def.Name
	if !identRe.MatchString(name) {
		return invalid(lineage, name, "field name must match %s", identRe.String())
	}
	if reservedFields[name] {
		return invalid(lineage, name, "field name is reserved")
	}
	if !def.Type.Valid() {
		return invalid(lineage, name, "unknown type %q", def.Type)
	}

	switch def.Type {
	case TypeString:
		if def.MaxLength <= 0 {
			return invalid(lineage, name, "string fields need a positive max_length")
		}
	case TypeArray:
		if !def.BaseType.IsInteger() {
			return invalid(lineage, name, "array base_type must be integer or small_integer, got %q", def.BaseType)
		}
		if def.Size <= 0 {
			return invalid(lineage, name, "array fields need a positive size")
		}
	}
	if def.Type != TypeArray && (def.BaseType != "" || def.Size != 0) {
		return invalid(lineage, name, "base_type and size only apply to array fields")
	}

	if def.IsCategorical() {
		seen := make(map[string]bool, len(def.Choices))
		for _, c := range def.Choices {
			if c.Value == "" {
				return invalid(lineage, name, "choice values must not be empty")
			}
			if seen[c.Value] {
				return invalid(lineage, name, "duplicate choice %q", c.Value)
			}
			seen[c.Value] = true
			if def.MaxLength > 0 && utf8.RuneCountInString(c.Value) > def.MaxLength {
				return invalid(lineage, name, "choice %q exceeds max_length %d", c.Value, def.MaxLength)
			}
		}
		if def.Default != nil && !def.HasChoice(*def.Default) {
			return invalid(lineage, name, "default %q is not one of the choices %v", *def.Default, def.ChoiceValues())
		}
	}

	if def.Default != nil {
		if err := checkDefaultLiteral(def); err != nil {
			return invalid(lineage, name, "%v", err)
		}
	}

	for _, v := range def.Validators {
		if _, ok := lookupValidator(v); !ok {
			return invalid(lineage, name, "unknown validator %q", v)
		}
	}
	return nil
}

func checkDefaultLiteral(def FieldDefinition) error {
	d := *def.Default
	switch def.Type {
	case TypeInteger, TypeSmallInteger:
		if _, err := strconv.ParseInt(d, 10, 64); err != nil {
			return fmt.Errorf("default %q is not an integer", d)
		}
	case TypeBoolean:
		if _, err := strconv.ParseBool(d); err != nil {
			return fmt.Errorf("default %q is not a boolean", d)
		}
	case TypeString:
		if utf8.RuneCountInString(d) > def.MaxLength {
			return fmt.Errorf("default %q exceeds max_length %d", d, def.MaxLength)
		}
	case TypeArray, TypeTimestamp:
		return fmt.Errorf("%s fields do not support literal defaults", def.Type)
	}
	return nil
}
