package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperationKind is the kind of schema mutation an Operation performs.
type OperationKind string

const (
	OpAdd    OperationKind = "add"
	OpRemove OperationKind = "remove"
	OpAlter  OperationKind = "alter"
)

// Operation is one schema mutation. Remove carries no Definition.
type Operation struct {
	Kind       OperationKind    `json:"kind"`
	Field      string           `json:"field"`
	Definition *FieldDefinition `json:"definition,omitempty"`
}

// AddField builds an add operation for def.
func AddField(def FieldDefinition) Operation {
	d := def.Clone()
	return Operation{Kind: OpAdd, Field: def.Name, Definition: &d}
}

// RemoveField builds a remove operation for name.
func RemoveField(name string) Operation {
	return Operation{Kind: OpRemove, Field: name}
}

// AlterField builds an alter operation replacing the definition of def.Name.
func AlterField(def FieldDefinition) Operation {
	d := def.Clone()
	return Operation{Kind: OpAlter, Field: def.Name, Definition: &d}
}

// Record is an immutable, ordered schema-change record within a lineage.
type Record struct {
	ID          uuid.UUID   `json:"id"`
	Lineage     string      `json:"lineage"`
	Name        string      `json:"name"`
	Seq         int64       `json:"seq"`
	Predecessor string      `json:"predecessor,omitempty"`
	Operations  []Operation `json:"operations"`
	Checksum    string      `json:"checksum"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsRoot reports whether r is the first record of its lineage.
func (r *Record) IsRoot() bool {
	return r.Predecessor == ""
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.Operations = CloneOperations(r.Operations)
	return &out
}

// CloneOperations deep-copies an operation list.
func CloneOperations(ops []Operation) []Operation {
	if ops == nil {
		return nil
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op
		if op.Definition != nil {
			d := op.Definition.Clone()
			out[i].Definition = &d
		}
	}
	return out
}

// VerifyChecksum recomputes the content hash and compares it to the stored one.
func (r *Record) VerifyChecksum() error {
	want := Checksum(r.Lineage, r.Name, r.Predecessor, r.Operations)
	if r.Checksum != want {
		return fmt.Errorf("record %s/%s: checksum mismatch (stored %s, computed %s)", r.Lineage, r.Name, r.Checksum, want)
	}
	return nil
}

// Checksum is the sha256 of the canonical JSON encoding of a record's content.
func Checksum(lineage, name, predecessor string, ops []Operation) string {
	payload := struct {
		Lineage     string      `json:"lineage"`
		Name        string      `json:"name"`
		Predecessor string      `json:"predecessor"`
		Operations  []Operation `json:"operations"`
	}{lineage, name, predecessor, ops}
	// Marshal of plain structs and slices cannot fail.
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

const maxSuggestedNameLen = 52

// SuggestName derives a record name from its sequence number and operations,
// e.g. 0013_remove_is_verified_verification_status_and_more.
func SuggestName(seq int64, ops []Operation) string {
	fragments := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpRemove:
			fragments = append(fragments, "remove_"+op.Field)
		case OpAlter:
			fragments = append(fragments, "alter_"+op.Field)
		default:
			fragments = append(fragments, op.Field)
		}
	}

	var suffix string
	switch {
	case len(fragments) == 0:
		suffix = "auto"
	case len(fragments) <= 2:
		suffix = strings.Join(fragments, "_")
	default:
		suffix = strings.Join(fragments[:2], "_") + "_and_more"
	}
	if len(suffix) > maxSuggestedNameLen {
		suffix = strings.TrimRight(suffix[:maxSuggestedNameLen], "_")
	}
	return fmt.Sprintf("%04d_%s", seq, suffix)
}
