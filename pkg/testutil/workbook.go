package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetFixture is one worksheet of a generated workbook.
type SheetFixture struct {
	Name string
	Rows [][]any
}

// WriteWorkbook writes an .xlsx file under dir and returns its path.
//
// Usage:
//
//	path := testutil.WriteWorkbook(t, t.TempDir(), "punch.xlsx",
//	    testutil.SheetFixture{Name: "Page1", Rows: [][]any{{"序號", "公務帳號"}, {1, "A001"}}},
//	)
func WriteWorkbook(t *testing.T, dir, name string, sheets ...SheetFixture) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			t.Fatalf("create sheet %q: %v", sheet.Name, err)
		}

		for r, row := range sheet.Rows {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				t.Fatalf("write row %d of %q: %v", r+1, sheet.Name, err)
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// PunchSheet builds a punch export page the way the attendance system
// prints it: five title rows, then the header, then data, with the title and
// header block repeated before every pageSize data rows.
func PunchSheet(name string, pageSize int, data ...[]any) SheetFixture {
	header := []any{"序號", "卡號", "公務帳號", "身分證字號", "人員姓名", "刷卡日期", "刷卡時間", "門禁名稱", "進出狀態", ""}
	title := [][]any{
		{"門禁刷卡紀錄查詢"},
		{"查詢期間", "1140201~1140228"},
		{},
		{"列印人員", "admin"},
		{},
	}

	var rows [][]any
	for i, d := range data {
		if i%pageSize == 0 {
			rows = append(rows, title...)
			rows = append(rows, header)
		}
		rows = append(rows, d)
	}
	if len(data) == 0 {
		rows = append(rows, title...)
		rows = append(rows, header)
	}
	return SheetFixture{Name: name, Rows: rows}
}
