// Package reader turns paginated spreadsheet exports into a single logical
// table. Exports repeat their title and header block at every print page
// break; a row predicate decides which rows are genuine data.
package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/punchflow/punchflow/pkg/errors"
)

// Layout locates the header and data inside each sheet.
type Layout struct {
	// SkipRows leading title rows are ignored before the header.
	SkipRows int
	// HeaderRow is the header position counted after SkipRows.
	HeaderRow int
	// Sheets restricts reading to the named sheets. Empty reads all of them.
	Sheets []string
	// FilterColumn is the sentinel column whose value must be numeric on
	// genuine data rows. Empty disables the sentinel check.
	FilterColumn  string
	RemoveUnnamed bool
}

// Record is one data row keyed by column name.
type Record struct {
	Sheet string
	// Line is the 1-based row number inside the sheet.
	Line  int
	Cells map[string]string
}

// Table is the concatenation of all data rows, in source order.
type Table struct {
	Source  string
	Columns []string
	Records []Record
	// Discarded counts rows the predicate rejected.
	Discarded int
	// Unfiltered lists sheets that lack the filter column and were read
	// with NotHeaderPredicate instead.
	Unfiltered []string
}

// HasColumn reports whether any sheet contributed the named column.
func (t *Table) HasColumn(name string) bool {
	key := NormalizeHeader(name)
	for _, c := range t.Columns {
		if NormalizeHeader(c) == key {
			return true
		}
	}
	return false
}

// RowView exposes one candidate data row to a predicate.
type RowView struct {
	Header []string
	Cells  []string
}

// Value returns the trimmed cell under the named column.
func (v RowView) Value(column string) string {
	key := NormalizeHeader(column)
	for i, h := range v.Header {
		if NormalizeHeader(h) == key {
			return cellValue(v.Cells, i)
		}
	}
	return ""
}

// Blank reports whether every cell is empty.
func (v RowView) Blank() bool {
	for _, c := range v.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RepeatsHeader reports whether every named column holds its own label,
// which is how a pagination header block looks.
func (v RowView) RepeatsHeader() bool {
	named := 0
	for i, h := range v.Header {
		if h == "" {
			continue
		}
		named++
		if NormalizeHeader(cellValue(v.Cells, i)) != NormalizeHeader(h) {
			return false
		}
	}
	return named > 0
}

// RowPredicate decides whether a row is genuine data.
type RowPredicate func(RowView) bool

// SequencePredicate keeps rows whose sentinel column holds a sequence
// number made of decimal digits only. Repeated header labels, page titles
// and footers all fail the test, as do "NaN", "Inf" and exponent forms.
func SequencePredicate(column string) RowPredicate {
	return func(v RowView) bool {
		s := v.Value(column)
		if s == "" {
			return false
		}
		_, err := strconv.ParseUint(s, 10, 64)
		return err == nil
	}
}

// NotHeaderPredicate keeps every non-blank row that is not a header repeat.
func NotHeaderPredicate(v RowView) bool {
	return !v.Blank() && !v.RepeatsHeader()
}

// DefaultPredicate picks SequencePredicate when a filter column is set.
func DefaultPredicate(layout Layout) RowPredicate {
	if layout.FilterColumn != "" {
		return SequencePredicate(layout.FilterColumn)
	}
	return NotHeaderPredicate
}

// ReadTable extracts one table from the selected sheets of wb. Sheets are
// concatenated with columns aligned by header name. A nil predicate means
// DefaultPredicate(layout); a sheet without the filter column then falls
// back to NotHeaderPredicate, and the file fails only when no sheet has it.
func ReadTable(wb *Workbook, layout Layout, keep RowPredicate) (*Table, error) {
	injected := keep != nil
	if keep == nil {
		keep = DefaultPredicate(layout)
	}

	sheets, err := selectSheets(wb, layout.Sheets)
	if err != nil {
		return nil, err
	}

	table := &Table{Source: wb.Path}
	seen := make(map[string]bool)
	usable, filtered := 0, 0

	for _, sheet := range sheets {
		if sheetBlank(sheet) {
			continue
		}

		headerAt := layout.SkipRows + layout.HeaderRow
		if headerAt >= len(sheet.Rows) {
			return nil, &errors.FileFormatError{
				File:   wb.Path,
				Sheet:  sheet.Name,
				Reason: fmt.Sprintf("header row %d not found, sheet has %d rows", headerAt+1, len(sheet.Rows)),
			}
		}

		header, keepCols := buildHeader(sheet.Rows[headerAt], layout.RemoveUnnamed)
		if len(keepCols) == 0 {
			return nil, &errors.FileFormatError{
				File:   wb.Path,
				Sheet:  sheet.Name,
				Reason: fmt.Sprintf("header row %d is empty", headerAt+1),
			}
		}
		sheetKeep := keep
		if layout.FilterColumn != "" {
			if containsHeader(header, layout.FilterColumn) {
				filtered++
			} else if !injected {
				sheetKeep = NotHeaderPredicate
				table.Unfiltered = append(table.Unfiltered, sheet.Name)
			}
		}
		usable++

		for _, name := range header {
			if !seen[name] {
				seen[name] = true
				table.Columns = append(table.Columns, name)
			}
		}

		for i := headerAt + 1; i < len(sheet.Rows); i++ {
			cells := project(sheet.Rows[i], keepCols)
			if !sheetKeep(RowView{Header: header, Cells: cells}) {
				table.Discarded++
				continue
			}

			rec := Record{Sheet: sheet.Name, Line: i + 1, Cells: make(map[string]string, len(header))}
			for j, name := range header {
				rec.Cells[name] = cellValue(cells, j)
			}
			table.Records = append(table.Records, rec)
		}
	}

	if usable == 0 {
		return nil, &errors.FileFormatError{File: wb.Path, Reason: "no sheet with data"}
	}
	if layout.FilterColumn != "" && filtered == 0 {
		return nil, &errors.FileFormatError{
			File:   wb.Path,
			Reason: fmt.Sprintf("filter column %q not found in any sheet header", layout.FilterColumn),
		}
	}

	return table, nil
}

func selectSheets(wb *Workbook, names []string) ([]Sheet, error) {
	if len(names) == 0 {
		return wb.Sheets, nil
	}

	out := make([]Sheet, 0, len(names))
	for _, name := range names {
		found := false
		for _, s := range wb.Sheets {
			if s.Name == name {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, &errors.FileFormatError{File: wb.Path, Sheet: name, Reason: "sheet not found"}
		}
	}
	return out, nil
}

// buildHeader names each kept column and returns their source indexes.
// Blank headers become "Unnamed: i" unless they are removed, and duplicate
// names get a ".n" suffix so no column is silently overwritten.
func buildHeader(row []string, removeUnnamed bool) ([]string, []int) {
	var (
		header []string
		cols   []int
		counts = make(map[string]int)
	)
	for i, raw := range row {
		name := strings.TrimSpace(raw)
		unnamed := name == "" || strings.HasPrefix(name, "Unnamed:")
		if unnamed {
			if removeUnnamed {
				continue
			}
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := counts[name]; n > 0 {
			counts[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			counts[name] = 1
		}
		header = append(header, name)
		cols = append(cols, i)
	}
	return header, cols
}

func project(row []string, cols []int) []string {
	out := make([]string, len(cols))
	for j, i := range cols {
		out[j] = cellValue(row, i)
	}
	return out
}

func containsHeader(header []string, name string) bool {
	key := NormalizeHeader(name)
	for _, h := range header {
		if NormalizeHeader(h) == key {
			return true
		}
	}
	return false
}

func sheetBlank(s Sheet) bool {
	for _, row := range s.Rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return false
			}
		}
	}
	return true
}

// NormalizeHeader folds a header label for matching: trimmed, lower case,
// inner whitespace collapsed.
func NormalizeHeader(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(header), " "))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
