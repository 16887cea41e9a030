package sheet

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

// Table is a parsed spreadsheet: the header row and the data rows below it.
// Every row is padded to len(Columns). RowNumbers[i] is the 1-based source
// row of Rows[i]; blank rows are dropped, so the numbers can skip.
type Table struct {
	Columns    []string
	Rows       [][]string
	RowNumbers []int
}

// RowNumber returns the source row of Rows[i]. Tables built without row
// numbers assume a header on row 1 and no gaps.
func (t Table) RowNumber(i int) int {
	if i >= 0 && i < len(t.RowNumbers) {
		return t.RowNumbers[i]
	}
	return i + 2
}

// Reader parses a spreadsheet file into a Table.
type Reader interface {
	Read(ctx context.Context, path string) (Table, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) (Table, error)

func (f ReaderFunc) Read(ctx context.Context, path string) (Table, error) {
	return f(ctx, path)
}

// SupportedExtensions lists the recipient file extensions a reader exists for.
var SupportedExtensions = []string{".xlsx", ".xlsm", ".csv"}

// ExtensionReader dispatches to a concrete reader by file extension.
type ExtensionReader struct {
	excel Reader
	csv   Reader
}

func NewExtensionReader() *ExtensionReader {
	return &ExtensionReader{
		excel: NewExcelReader(),
		csv:   NewCSVReader(),
	}
}

func (r *ExtensionReader) Read(ctx context.Context, path string) (Table, error) {
	reader, err := r.forPath(path)
	if err != nil {
		return Table{}, err
	}
	return reader.Read(ctx, path)
}

func (r *ExtensionReader) forPath(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return r.excel, nil
	case ".csv":
		return r.csv, nil
	default:
		return nil, fmt.Errorf("%w: unsupported spreadsheet type %q", domain.ErrDataFormat, filepath.Ext(path))
	}
}

// newTable builds a Table from raw records. lines holds the source row of
// each record; nil means records are consecutive rows starting at row 1.
func newTable(records [][]string, lines []int) Table {
	if len(records) == 0 {
		return Table{}
	}

	header := trimTrailingEmpty(records[0])
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	rows := make([][]string, 0, len(records)-1)
	numbers := make([]int, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := make([]string, len(columns))
		copy(row, record)
		rows = append(rows, row)

		line := i + 2
		if i+1 < len(lines) {
			line = lines[i+1]
		}
		numbers = append(numbers, line)
	}

	return Table{Columns: columns, Rows: rows, RowNumbers: numbers}
}

func trimTrailingEmpty(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
