package sheet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName() error = %v", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("SetCellValue() error = %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "recipients.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestExcelReaderReadsFirstSheet(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"contact", "message"},
		{"+1 555 123 4567", "hello"},
		{"15550000000", ""},
		{"905551112233", "merhaba"},
	})

	table, err := NewExcelReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	wantColumns := []string{"contact", "message"}
	if !reflect.DeepEqual(table.Columns, wantColumns) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantColumns)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(table.Rows))
	}
	if table.Rows[0][0] != "+1 555 123 4567" || table.Rows[0][1] != "hello" {
		t.Fatalf("Rows[0] = %v", table.Rows[0])
	}
	// Ragged rows are padded to the header width.
	if len(table.Rows[1]) != 2 || table.Rows[1][1] != "" {
		t.Fatalf("Rows[1] = %v, want padded row", table.Rows[1])
	}
}

func TestExcelReaderKeepsRowNumbersAcrossBlankRows(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"contact"},
		{"111"},
		{},
		{"222"},
	})

	table, err := NewExcelReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if want := []int{2, 4}; !reflect.DeepEqual(table.RowNumbers, want) {
		t.Fatalf("RowNumbers = %v, want %v (rows %v)", table.RowNumbers, want, table.Rows)
	}
}

func TestTableRowNumberWithoutNumbers(t *testing.T) {
	t.Parallel()

	table := Table{Columns: []string{"contact"}, Rows: [][]string{{"1"}, {"2"}}}
	if table.RowNumber(0) != 2 || table.RowNumber(1) != 3 {
		t.Fatalf("RowNumber = %d, %d, want 2, 3", table.RowNumber(0), table.RowNumber(1))
	}
}

func TestExcelReaderKeepsNumericContactsRaw(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"Phone"},
		{15551234567},
	})

	table, err := NewExcelReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(table.Rows))
	}
	if got := domain.NormalizeContact(table.Rows[0][0]); got != "15551234567" {
		t.Fatalf("NormalizeContact(%q) = %q, want %q", table.Rows[0][0], got, "15551234567")
	}
}

func TestExcelReaderRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "broken.xlsx", "not a zip archive")

	_, err := NewExcelReader().Read(context.Background(), path)
	if !errors.Is(err, domain.ErrDataFormat) {
		t.Fatalf("Read() error = %v, want ErrDataFormat", err)
	}
}

func TestCSVReader(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		content     string
		wantColumns []string
		wantRows    [][]string
		wantLines   []int
	}{
		{
			name:        "header and rows",
			content:     "contact,message\n15551234567,hi\n15557654321,hey\n",
			wantColumns: []string{"contact", "message"},
			wantRows:    [][]string{{"15551234567", "hi"}, {"15557654321", "hey"}},
			wantLines:   []int{2, 3},
		},
		{
			name:        "byte order mark is stripped",
			content:     "\ufeffPhone,Msg\n1555,x\n",
			wantColumns: []string{"Phone", "Msg"},
			wantRows:    [][]string{{"1555", "x"}},
			wantLines:   []int{2},
		},
		{
			name:        "blank lines and short rows",
			content:     "Name,Phone,Message\nAda,1555\n,,\nBob,1666,yo\n",
			wantColumns: []string{"Name", "Phone", "Message"},
			wantRows:    [][]string{{"Ada", "1555", ""}, {"Bob", "1666", "yo"}},
			wantLines:   []int{2, 4},
		},
		{
			name:        "empty lines keep source line numbers",
			content:     "contact\n\n1555\n\n1666\n",
			wantColumns: []string{"contact"},
			wantRows:    [][]string{{"1555"}, {"1666"}},
			wantLines:   []int{3, 5},
		},
		{
			name:        "header only",
			content:     "contact\n",
			wantColumns: []string{"contact"},
			wantRows:    [][]string{},
			wantLines:   []int{},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, "recipients.csv", tc.content)
			table, err := NewCSVReader().Read(context.Background(), path)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(table.Columns, tc.wantColumns) {
				t.Fatalf("Columns = %v, want %v", table.Columns, tc.wantColumns)
			}
			if !reflect.DeepEqual(table.Rows, tc.wantRows) {
				t.Fatalf("Rows = %v, want %v", table.Rows, tc.wantRows)
			}
			if !reflect.DeepEqual(table.RowNumbers, tc.wantLines) {
				t.Fatalf("RowNumbers = %v, want %v", table.RowNumbers, tc.wantLines)
			}
		})
	}
}

func TestCSVReaderEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "empty.csv", "")
	table, err := NewCSVReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(table.Columns) != 0 || len(table.Rows) != 0 {
		t.Fatalf("table = %+v, want empty", table)
	}
}

func TestExtensionReaderDispatch(t *testing.T) {
	t.Parallel()

	csvPath := writeFile(t, "list.CSV", "contact\n1555\n")
	table, err := NewExtensionReader().Read(context.Background(), csvPath)
	if err != nil {
		t.Fatalf("Read(csv) error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(table.Rows))
	}

	for _, name := range []string{"legacy.xls", "notes.txt", "noext"} {
		path := writeFile(t, name, "x")
		if _, err := NewExtensionReader().Read(context.Background(), path); !errors.Is(err, domain.ErrDataFormat) {
			t.Fatalf("Read(%s) error = %v, want ErrDataFormat", name, err)
		}
	}
}

func TestReaderHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeFile(t, "recipients.csv", "contact\n1\n")
	if _, err := NewCSVReader().Read(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read() error = %v, want context.Canceled", err)
	}
}
