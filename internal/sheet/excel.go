package sheet

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ExcelReader reads the first worksheet of an OOXML workbook.
type ExcelReader struct{}

func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

func (r *ExcelReader) Read(ctx context.Context, path string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to open workbook: %v", domain.ErrDataFormat, err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%w: workbook has no sheets", domain.ErrDataFormat)
	}

	// Raw values keep long phone numbers out of the cell's display format.
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to read sheet %q: %v", domain.ErrDataFormat, sheets[0], err)
	}

	return newTable(records, nil), nil
}
