package main

import "fmt"

// AlreadyMigratedError is returned during planning when the identifier
// column already holds UUIDs. Nothing has been changed.
type AlreadyMigratedError struct {
	Table  string
	Column string
	Type   string
}

func (e *AlreadyMigratedError) Error() string {
	return fmt.Sprintf("field %s.%s is already UUID (%s)", e.Table, e.Column, e.Type)
}

// LookupError is returned when a table or column named by the schema
// metadata cannot be found.
type LookupError struct {
	Table  string
	Column string
}

func (e *LookupError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("unable to find table %s", e.Table)
	}
	return fmt.Sprintf("unable to find %s in %s", e.Column, e.Table)
}

// DanglingReferenceError is returned when a non-null foreign key value has
// no row in the migrated table. When raised by the pre-flight check Count
// holds the number of offending rows and Value is nil.
type DanglingReferenceError struct {
	Table  string
	Column string
	Value  any
	Count  int64
}

func (e *DanglingReferenceError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s.%s has %d value(s) without a referenced row", e.Table, e.Column, e.Count)
	}
	return fmt.Sprintf("%s.%s = %v has no referenced row", e.Table, e.Column, e.Value)
}

// StatementFailedError wraps a driver error together with the statement
// that produced it.
type StatementFailedError struct {
	Statement string
	Err       error
}

func (e *StatementFailedError) Error() string {
	return fmt.Sprintf("%v\nSQL: %s", e.Err, e.Statement)
}

func (e *StatementFailedError) Unwrap() error { return e.Err }

// UnsupportedConfigurationError is returned before any mutation when a
// required capability is missing or a schema shape cannot be handled.
type UnsupportedConfigurationError struct {
	Reason string
}

func (e *UnsupportedConfigurationError) Error() string {
	return "unsupported configuration: " + e.Reason
}
