package models

import (
	"errors"
	"strings"
)

// Field names a validated user attribute
type Field string

const (
	FieldNationalID Field = "national_id"
	FieldFirstName  Field = "first_name"
	FieldLastName   Field = "last_name"
	FieldBirthDate  Field = "birth_date"
)

// Reason explains why a field was rejected
type Reason string

const (
	ReasonInvalid   Reason = "invalid"
	ReasonDuplicate Reason = "duplicate"
)

var (
	// ErrValidation matches any *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateID matches a ValidationError carrying a duplicate national id
	ErrDuplicateID = errors.New("national id already registered")

	// ErrNotFound matches any *NotFoundError
	ErrNotFound = errors.New("user not found")
)

// FieldError is one rejected field
type FieldError struct {
	Field  Field  `json:"field"`
	Reason Reason `json:"reason"`
}

// ValidationError lists every failing field, in validation order
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) add(field Field, reason Reason) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Has reports whether field failed for any reason
func (e *ValidationError) Has(field Field) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// FieldNames returns the failing field names
func (e *ValidationError) FieldNames() []Field {
	names := make([]Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, string(f.Field)+" "+string(f.Reason))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrDuplicateID:
		for _, f := range e.Fields {
			if f.Reason == ReasonDuplicate {
				return true
			}
		}
	}
	return false
}

// NewFieldError builds a ValidationError for a single field
func NewFieldError(field Field, reason Reason) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

// Collector accumulates field failures across a validation pass
type Collector struct {
	err ValidationError
}

// Add records a failure
func (c *Collector) Add(field Field, reason Reason) {
	c.err.add(field, reason)
}

// Err returns the accumulated ValidationError, or nil
func (c *Collector) Err() error {
	if len(c.err.Fields) == 0 {
		return nil
	}
	verr := c.err
	return &verr
}

// NotFoundError reports an identifier with no record
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "user not found: " + e.ID
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
