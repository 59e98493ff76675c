package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
	"unicode/utf8"
)

// ValueValidator is a predicate run against a field value before persistence.
type ValueValidator func(value any) error

var (
	validatorsMu sync.RWMutex
	validators   = map[string]ValueValidator{
		"rgb_value":    validateRGBValue,
		"non_negative": validateNonNegative,
	}
)

// RegisterValidator makes a named validator available to field definitions.
// Registering an existing name replaces it.
func RegisterValidator(name string, fn ValueValidator) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	validators[name] = fn
}

// Validators returns the registered validator names, sorted.
func Validators() []string {
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()
	names := make([]string, 0, len(validators))
	for n := range validators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupValidator(name string) (ValueValidator, bool) {
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()
	fn, ok := validators[name]
	return fn, ok
}

// validateRGBValue requires every element of a sequence to be a colour
// channel value between 0 and 255.
func validateRGBValue(value any) error {
	items, ok := value.([]any)
	if !ok {
		return errors.New("expected a list of colour channel values")
	}
	for i, item := range items {
		n, ok := asInt(item)
		if !ok || n < 0 || n > 255 {
			return fmt.Errorf("element %d: %v is not a valid colour channel value (0-255)", i, item)
		}
	}
	return nil
}

func validateNonNegative(value any) error {
	if items, ok := value.([]any); ok {
		for i, item := range items {
			if n, ok := asInt(item); !ok || n < 0 {
				return fmt.Errorf("element %d: %v is negative", i, item)
			}
		}
		return nil
	}
	if n, ok := asInt(value); !ok || n < 0 {
		return fmt.Errorf("%v is negative", value)
	}
	return nil
}

// asInt accepts the numeric shapes produced by encoding/json and Go literals.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Check validates a single value against the definition: nullability, type,
// length, size, choices and named validators, in that order.
func (f FieldDefinition) Check(value any) error {
	if value == nil {
		if f.Nullable {
			return nil
		}
		return errors.New("value must not be null")
	}

	switch f.Type {
	case TypeString, TypeText:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		if s == "" && !f.Blank && !f.IsCategorical() {
			return errors.New("value must not be blank")
		}
		if n := utf8.RuneCountInString(s); f.MaxLength > 0 && n > f.MaxLength {
			return fmt.Errorf("length %d exceeds max_length %d", n, f.MaxLength)
		}
		if f.IsCategorical() && !f.HasChoice(s) {
			return fmt.Errorf("%q is not one of %v", s, f.ChoiceValues())
		}
	case TypeInteger, TypeSmallInteger:
		n, ok := asInt(value)
		if !ok {
			return fmt.Errorf("expected an integer, got %v", value)
		}
		if f.Type == TypeSmallInteger && (n < math.MinInt16 || n > math.MaxInt16) {
			return fmt.Errorf("%d is out of small_integer range", n)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected a boolean, got %T", value)
		}
	case TypeTimestamp:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected an RFC 3339 timestamp, got %T", value)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("expected an RFC 3339 timestamp: %w", err)
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected a list, got %T", value)
		}
		if len(items) != f.Size {
			return fmt.Errorf("expected %d elements, got %d", f.Size, len(items))
		}
		elem := FieldDefinition{Name: f.Name, Type: f.BaseType}
		for i, item := range items {
			if err := elem.Check(item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}

	for _, name := range f.Validators {
		fn, ok := lookupValidator(name)
		if !ok {
			return fmt.Errorf("unknown validator %q", name)
		}
		if err := fn(value); err != nil {
			return err
		}
	}
	return nil
}

// FieldError pairs a field name with the reason its value was rejected.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// CheckRow validates a full row against the schema. Unknown keys are rejected
// and non-nullable fields without a default must be present. The returned
// errors are ordered by field declaration, unknown keys last.
func (s Schema) CheckRow(row map[string]any) []FieldError {
	var errs []FieldError
	for _, f := range s.fields {
		v, present := row[f.Name]
		if !present {
			if !f.Nullable && f.Default == nil {
				errs = append(errs, FieldError{Field: f.Name, Reason: "value is required"})
			}
			continue
		}
		if err := f.Check(v); err != nil {
			errs = append(errs, FieldError{Field: f.Name, Reason: err.Error()})
		}
	}

	var unknown []string
	for k := range row {
		if !s.Has(k) && k != "id" {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, FieldError{Field: k, Reason: "unknown field"})
	}
	return errs
}
