package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadCSV reads every row from r, trimming cell whitespace.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: read csv row")
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}
}

// ReadXLSX reads every row of the first sheet of the workbook at path.
func ReadXLSX(filePath string) ([][]string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: workbook has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadRows opens source and parses it by extension. XLSX needs random
// access, so remote workbooks are spooled to a temp file first.
func ReadRows(ctx context.Context, o Opener, source string) ([][]string, error) {
	rc, err := o.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	ext := strings.ToLower(path.Ext(strings.SplitN(source, "?", 2)[0]))
	switch ext {
	case ".xlsx":
		tmp, err := os.CreateTemp("", "phonelink-import-*.xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "importer: create temp file")
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, rc); err != nil {
			tmp.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "importer: spool xlsx")
		}
		if err := tmp.Close(); err != nil {
			return nil, eris.Wrap(err, "importer: close temp file")
		}
		return ReadXLSX(tmp.Name())
	case ".csv", "":
		return ReadCSV(rc)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", ext)
	}
}
