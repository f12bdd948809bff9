// Package standardize renames source headers to the internal field
// vocabulary of each entity.
package standardize

import (
	"fmt"
	"sort"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/reader"
	"github.com/punchflow/punchflow/pkg/errors"
)

// Mapping is a validated source header to field table for one entity.
type Mapping struct {
	entity   domain.Entity
	bySource map[string]domain.Field
}

// NewMapping validates every target against the entity's field enumeration.
// Unknown targets are rejected here so a bad configuration fails at startup
// instead of while rows are processed.
func NewMapping(entity domain.Entity, columns map[string]string) (*Mapping, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}

	m := &Mapping{entity: entity, bySource: make(map[string]domain.Field, len(columns))}
	var unknown []string
	for source, target := range columns {
		f := domain.Field(target)
		if !domain.HasField(entity, f) {
			unknown = append(unknown, fmt.Sprintf("%s -> %s", source, target))
			continue
		}
		m.bySource[reader.NormalizeHeader(source)] = f
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &errors.SchemaValidationError{Entity: string(entity), Unknown: unknown}
	}
	return m, nil
}

// Entity returns the entity this mapping belongs to.
func (m *Mapping) Entity() domain.Entity {
	return m.entity
}

// Target returns the field a source header maps to.
func (m *Mapping) Target(source string) (domain.Field, bool) {
	f, ok := m.bySource[reader.NormalizeHeader(source)]
	return f, ok
}

// Apply renames the table's columns. Unmapped columns are kept in Row.Extra.
// Required fields are checked once against the mapped columns; a missing
// one fails the whole entity.
func (m *Mapping) Apply(table *reader.Table, required []domain.Field) ([]domain.Row, error) {
	present := make(map[domain.Field]bool)
	for _, col := range table.Columns {
		if f, ok := m.Target(col); ok {
			present[f] = true
		}
	}

	var missing []string
	for _, f := range required {
		if !present[f] {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, &errors.SchemaValidationError{Entity: string(m.entity), Missing: missing}
	}

	rows := make([]domain.Row, 0, len(table.Records))
	for i, rec := range table.Records {
		row := domain.Row{
			Index:  i,
			Sheet:  rec.Sheet,
			Line:   rec.Line,
			Values: make(map[domain.Field]string, len(present)),
		}
		// Iterate columns, not the cell map, so aliases resolve in header order.
		for _, col := range table.Columns {
			value, ok := rec.Cells[col]
			if !ok {
				continue
			}
			f, mapped := m.Target(col)
			if !mapped {
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[col] = value
				continue
			}
			if existing, set := row.Values[f]; !set || existing == "" {
				row.Values[f] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseFields checks a list of field names against the entity enumeration.
func ParseFields(entity domain.Entity, names []string) ([]domain.Field, error) {
	fields := make([]domain.Field, 0, len(names))
	var unknown []string
	for _, n := range names {
		f := domain.Field(n)
		if !domain.HasField(entity, f) {
			unknown = append(unknown, n)
			continue
		}
		fields = append(fields, f)
	}
	if len(unknown) > 0 {
		return nil, &errors.SchemaValidationError{Entity: string(entity), Unknown: unknown}
	}
	return fields, nil
}
