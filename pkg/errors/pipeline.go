package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline error kinds. Each concrete type below matches exactly one of these
// through errors.Is.
var (
	ErrFileFormat       = errors.New("file format error")
	ErrConversion       = errors.New("conversion error")
	ErrSchemaValidation = errors.New("schema validation error")
	ErrIntegration      = errors.New("integration error")
)

// FileFormatError reports a workbook or text table that cannot be read as the
// declared layout. It is fatal for the file it names.
type FileFormatError struct {
	File   string
	Sheet  string
	Reason string
	Err    error
}

func (e *FileFormatError) Error() string {
	var b strings.Builder
	b.WriteString("file format error")
	if e.File != "" {
		fmt.Fprintf(&b, " in %s", e.File)
	}
	if e.Sheet != "" {
		fmt.Fprintf(&b, " (sheet %q)", e.Sheet)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FileFormatError) Unwrap() error { return e.Err }

func (e *FileFormatError) Is(target error) bool { return target == ErrFileFormat }

// ConversionError reports a date or time value that does not decode.
type ConversionError struct {
	Value  string
	Kind   string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %s", e.Value, e.Kind, e.Reason)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// SchemaValidationError reports required columns absent after standardization,
// or a column mapping whose targets are not known fields.
type SchemaValidationError struct {
	Entity  string
	Missing []string
	Unknown []string
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown target fields: "+strings.Join(e.Unknown, ", "))
	}
	return fmt.Sprintf("schema validation failed for %s: %s", e.Entity, strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Is(target error) bool { return target == ErrSchemaValidation }

// IntegrationError reports an inconsistency found while joining sources, such
// as an account with more than one shift assignment.
type IntegrationError struct {
	AccountID string
	Reason    string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration error for account %s: %s", e.AccountID, e.Reason)
}

func (e *IntegrationError) Is(target error) bool { return target == ErrIntegration }
