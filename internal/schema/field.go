// Package schema defines schema-change records, the field definitions they
// carry, and the fold that turns an ordered record chain into the current
// shape of a persisted entity.
package schema

import (
	"slices"
	"strconv"
)

// FieldType is the semantic type of a field.
type FieldType string

const (
	TypeString       FieldType = "string"
	TypeText         FieldType = "text"
	TypeInteger      FieldType = "integer"
	TypeSmallInteger FieldType = "small_integer"
	TypeBoolean      FieldType = "boolean"
	TypeTimestamp    FieldType = "timestamp"
	// TypeArray is a fixed-size sequence of BaseType elements.
	TypeArray FieldType = "array"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeText, TypeInteger, TypeSmallInteger, TypeBoolean, TypeTimestamp, TypeArray:
		return true
	}
	return false
}

// IsInteger reports whether t belongs to the integer family.
func (t FieldType) IsInteger() bool {
	return t == TypeInteger || t == TypeSmallInteger
}

// Choice is one allowed value of a categorical field.
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// FieldDefinition describes a single field of an entity.
type FieldDefinition struct {
	Name       string    `json:"name" yaml:"name"`
	Type       FieldType `json:"type" yaml:"type"`
	BaseType   FieldType `json:"base_type,omitempty" yaml:"base_type,omitempty"`
	Size       int       `json:"size,omitempty" yaml:"size,omitempty"`
	MaxLength  int       `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Nullable   bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Blank      bool      `json:"blank,omitempty" yaml:"blank,omitempty"`
	Default    *string   `json:"default,omitempty" yaml:"default,omitempty"`
	Choices    []Choice  `json:"choices,omitempty" yaml:"choices,omitempty"`
	Validators []string  `json:"validators,omitempty" yaml:"validators,omitempty"`
	HelpText   string    `json:"help_text,omitempty" yaml:"help_text,omitempty"`
}

// IsCategorical reports whether the field is restricted to a closed set of values.
func (f FieldDefinition) IsCategorical() bool {
	return len(f.Choices) > 0
}

// HasChoice reports whether v is one of the field's enumerated values.
func (f FieldDefinition) HasChoice(v string) bool {
	for _, c := range f.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// ChoiceValues returns the enumerated values in declaration order.
func (f FieldDefinition) ChoiceValues() []string {
	values := make([]string, 0, len(f.Choices))
	for _, c := range f.Choices {
		values = append(values, c.Value)
	}
	return values
}

// Clone returns a deep copy so callers can never alias a stored definition.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	if f.Default != nil {
		d := *f.Default
		out.Default = &d
	}
	out.Choices = slices.Clone(f.Choices)
	out.Validators = slices.Clone(f.Validators)
	return out
}

// DefaultInt parses the default as an integer. ok is false when there is no default.
func (f FieldDefinition) DefaultInt() (n int64, ok bool, err error) {
	if f.Default == nil {
		return 0, false, nil
	}
	n, err = strconv.ParseInt(*f.Default, 10, 64)
	return n, true, err
}

// StringPtr is a convenience for building definitions with defaults.
func StringPtr(s string) *string {
	return &s
}
