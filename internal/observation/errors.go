package observation

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord reports a structurally invalid input record.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrMissingField reports a record lacking a value a derivation needs.
	ErrMissingField = errors.New("missing field")
)

// RecordError is a per-record failure. The record is skipped and the error
// collected next to the successful results.
type RecordError struct {
	Err   error  `json:"-"`
	Field string `json:"field,omitempty"`
	Index int    `json:"index"`
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// LoadError is a failure to obtain or parse the whole document. No
// observations are returned with it.
type LoadError struct {
	Err    error
	Source string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
