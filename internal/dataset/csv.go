package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads every record from r, header included.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // ragged rows are padded in FromRecords

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, record)
	}
}

// WriteCSV writes ds with a header row. Missing values are written empty.
func WriteCSV(ds *model.Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csv: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ds.ColumnNames()); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for i := range ds.Rows() {
		row := make([]string, ds.Width())
		for j, c := range ds.Columns {
			switch {
			case c.Missing != nil && c.Missing[i]:
			case c.IsNumeric():
				row[j] = strconv.FormatFloat(c.Nums[i], 'f', -1, 64)
			default:
				row[j] = c.Texts[i]
			}
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "csv: flush")
}
