package coercion

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// Policy governs what happens when a value's runtime type mismatches the schema type.
type Policy string

// Dirty values policies.
const (
	// Reject fails the document on any mismatch.
	Reject Policy = "reject"
	// Drop erases mismatched optional values and fails on required ones.
	Drop Policy = "drop"
	// CoerceOrReject converts the value when possible and fails otherwise.
	CoerceOrReject Policy = "coerce_or_reject"
	// CoerceOrDrop converts the value when possible, erasing optional values otherwise.
	CoerceOrDrop Policy = "coerce_or_drop"
)

// DefaultPolicy is used when the caller does not pick one.
const DefaultPolicy = CoerceOrReject

// IsValid checks if the policy is supported.
func (p Policy) IsValid() bool {
	return p == Reject || p == Drop || p == CoerceOrReject || p == CoerceOrDrop
}

// ParsePolicy parses a dirty_values parameter. Empty input yields DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return DefaultPolicy, nil
	}
	p := Policy(s)
	if !p.IsValid() {
		return "", domain.NewFieldError(domain.ErrInvalidQuery,
			"Parameter `dirty_values` must be one of reject, drop, coerce_or_reject, coerce_or_drop.")
	}
	return p, nil
}

// Operation is the kind of write a document is validated for.
type Operation string

// Write operations.
const (
	Create  Operation = "create"
	Upsert  Operation = "upsert"
	Update  Operation = "update"
	Emplace Operation = "emplace"
)

// IsValid checks if the operation is supported.
func (o Operation) IsValid() bool {
	return o == Create || o == Upsert || o == Update || o == Emplace
}

// IsUpdateLike reports whether the operation carries partial documents.
func (o Operation) IsUpdateLike() bool { return o == Update || o == Emplace }

// ParseOperation parses an action parameter. Empty input yields Create.
func ParseOperation(s string) (Operation, error) {
	if s == "" {
		return Create, nil
	}
	o := Operation(s)
	if !o.IsValid() {
		return "", domain.NewFieldError(domain.ErrInvalidQuery,
			"Parameter `action` must be one of create, upsert, update, emplace.")
	}
	return o, nil
}
