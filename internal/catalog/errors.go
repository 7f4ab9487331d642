package catalog

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("book not found")

type FieldViolation struct {
	Field   string
	Rule    string
	Message string
}

// ValidationError is returned before any store is touched.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldViolation{Field: field, Rule: rule, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StorageError wraps a failure of the record or asset store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
