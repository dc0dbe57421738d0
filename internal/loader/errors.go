package loader

import "fmt"

// LoadError reports that a source could not produce rows.
type LoadError struct {
	Source string // "archive" or "remote"
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ColumnCastError reports a column whose values could not be coerced to the
// expected type. The column is kept in its original form.
type ColumnCastError struct {
	Column string
	Value  string
	Err    error
}

func (e *ColumnCastError) Error() string {
	return fmt.Sprintf("column %q: cannot cast %q to integer: %v", e.Column, e.Value, e.Err)
}

func (e *ColumnCastError) Unwrap() error {
	return e.Err
}
