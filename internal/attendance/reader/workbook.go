package reader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/punchflow/punchflow/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Sheet is the raw cell grid of one worksheet, in row order.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook holds every sheet of one source file in workbook order.
type Workbook struct {
	Path   string
	Sheets []Sheet
}

// Format of a source file, derived from its extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatXLS
	FormatDelimited
)

// DetectFormat maps a file name to the reader that handles it.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".csv", ".tsv", ".txt":
		return FormatDelimited
	}
	return FormatUnknown
}

// OpenWorkbook reads every sheet of a spreadsheet file.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errors.FileFormatError{File: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	return ReadWorkbook(path, f)
}

// ReadWorkbook reads a spreadsheet from r; name selects the format.
func ReadWorkbook(name string, r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &errors.FileFormatError{File: name, Reason: "cannot read file", Err: err}
	}

	var sheets []Sheet
	switch DetectFormat(name) {
	case FormatXLSX:
		sheets, err = readXLSX(data)
	case FormatXLS:
		sheets, err = readXLS(data)
	default:
		return nil, &errors.FileFormatError{File: name, Reason: fmt.Sprintf("unsupported spreadsheet extension %q", filepath.Ext(name))}
	}
	if err != nil {
		return nil, &errors.FileFormatError{File: name, Reason: "cannot parse workbook", Err: err}
	}

	return &Workbook{Path: name, Sheets: sheets}, nil
}

func readXLSX(data []byte) ([]Sheet, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	names := file.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) ([]Sheet, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}

	sheets := make([]Sheet, 0, workbook.NumSheets())
	for i := 0; i < workbook.NumSheets(); i++ {
		ws := workbook.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet := Sheet{Name: ws.Name, Rows: make([][]string, 0, int(ws.MaxRow)+1)}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				sheet.Rows = append(sheet.Rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// Open reads any supported source file: spreadsheets by workbook format,
// text tables through opts.
func Open(path string, opts DelimitedOptions) (*Workbook, error) {
	if DetectFormat(path) == FormatDelimited {
		return OpenDelimited(path, opts)
	}
	return OpenWorkbook(path)
}
