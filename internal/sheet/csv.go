package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

// CSVReader reads comma separated recipient lists.
type CSVReader struct{}

func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (r *CSVReader) Read(ctx context.Context, path string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to open csv: %v", domain.ErrDataFormat, err)
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// encoding/csv skips empty lines, so keep each record's source line.
	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: failed to parse csv: %v", domain.ErrDataFormat, err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	// Excel prefixes UTF-8 CSV exports with a byte order mark.
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return newTable(records, lines), nil
}
