package schema

import (
	"encoding/json"
	"fmt"
)

// Schema is an ordered, immutable field set. The zero value is the empty schema.
type Schema struct {
	fields []FieldDefinition
}

// Fields returns a copy of the field definitions in declaration order.
func (s Schema) Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Clone()
	}
	return out
}

// MarshalJSON encodes the schema as its ordered field list.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the definition of name.
func (s Schema) Field(name string) (FieldDefinition, bool) {
	if i := s.index(name); i >= 0 {
		return s.fields[i].Clone(), true
	}
	return FieldDefinition{}, false
}

// Has reports whether name is part of the schema.
func (s Schema) Has(name string) bool {
	return s.index(name) >= 0
}

func (s Schema) index(name string) int {
	for i, f := range s.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Apply performs a single fold step and returns the resulting schema. The
// receiver is never modified.
func (s Schema) Apply(op Operation) (Schema, error) {
	i := s.index(op.Field)
	switch op.Kind {
	case OpAdd:
		if i >= 0 {
			return s, fmt.Errorf("add %q: field already exists", op.Field)
		}
		if op.Definition == nil {
			return s, fmt.Errorf("add %q: missing definition", op.Field)
		}
		next := make([]FieldDefinition, len(s.fields), len(s.fields)+1)
		copy(next, s.fields)
		return Schema{fields: append(next, op.Definition.Clone())}, nil
	case OpRemove:
		if i < 0 {
			return s, fmt.Errorf("remove %q: field does not exist", op.Field)
		}
		next := make([]FieldDefinition, 0, len(s.fields)-1)
		next = append(next, s.fields[:i]...)
		return Schema{fields: append(next, s.fields[i+1:]...)}, nil
	case OpAlter:
		if i < 0 {
			return s, fmt.Errorf("alter %q: field does not exist", op.Field)
		}
		if op.Definition == nil {
			return s, fmt.Errorf("alter %q: missing definition", op.Field)
		}
		next := make([]FieldDefinition, len(s.fields))
		copy(next, s.fields)
		next[i] = op.Definition.Clone()
		return Schema{fields: next}, nil
	default:
		return s, fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// ApplyRecord folds every operation of r in order.
func (s Schema) ApplyRecord(r *Record) (Schema, error) {
	out := s
	for _, op := range r.Operations {
		next, err := out.Apply(op)
		if err != nil {
			return s, fmt.Errorf("record %s: %w", r.Name, err)
		}
		out = next
	}
	return out, nil
}

// Materialize folds the records, in the order given, into the current schema.
func Materialize(records []*Record) (Schema, error) {
	var s Schema
	for _, r := range records {
		next, err := s.ApplyRecord(r)
		if err != nil {
			return Schema{}, err
		}
		s = next
	}
	return s, nil
}
