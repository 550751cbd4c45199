package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/model"
)

// TimestampLayout is the ddmmyyHHMM stamp used in artifact names.
const TimestampLayout = "0201061504"

// Artifact file names.
const (
	SummaryCSV    = "results.csv"
	SummaryXLSX   = "results.xlsx"
	RunConclusion = "conclusion.txt"
)

// Structured report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// SummaryColumns is the header of the consolidated summary table.
var SummaryColumns = []string{
	"File Name",
	"Fairness Score",
	"Transparency Score",
	"Robustness Score",
	"Privacy Score",
	"Accountability Score",
	"Final Compliance Score",
}

// Writer persists report artifacts into one output directory. Per-dataset
// artifact names come from Reserve so that datasets sharing a base name
// never write the same paths.
type Writer struct {
	dir    string
	format string
	now    func() time.Time

	mu    sync.Mutex
	taken map[string]bool
}

// NewWriter creates a Writer. An empty format selects JSON.
func NewWriter(dir, format string) *Writer {
	if format == "" {
		format = FormatJSON
	}
	return &Writer{dir: dir, format: format, now: time.Now, taken: make(map[string]bool)}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Stamp returns the current artifact timestamp.
func (w *Writer) Stamp() string {
	return w.now().Format(TimestampLayout)
}

// BaseName strips the directory and extension from a dataset path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Reserve returns the artifact name for a dataset: its base name, or the
// base name with a _2, _3, ... suffix when an earlier reservation on this
// Writer already holds it.
func (w *Writer) Reserve(file string) string {
	base := BaseName(file)

	w.mu.Lock()
	defer w.mu.Unlock()
	name := base
	for i := 2; w.taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	w.taken[name] = true
	return name
}

func (w *Writer) ensureDir() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrapf(err, "report: create output dir %s", w.dir)
	}
	return nil
}

// WriteReport writes the structured report as report_<name>_<stamp>.<format>,
// where name comes from Reserve.
func (w *Writer) WriteReport(name string, r *model.ComplianceReport) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}

	var (
		data []byte
		err  error
	)
	switch w.format {
	case FormatYAML:
		data, err = yaml.Marshal(r)
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "    ")
	default:
		return "", eris.Errorf("report: unsupported format %q", w.format)
	}
	if err != nil {
		return "", eris.Wrap(err, "report: marshal")
	}

	path := filepath.Join(w.dir, "report_"+name+"_"+w.Stamp()+"."+w.format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "report: write structured report")
	}
	return path, nil
}

// ProcessedPath returns the path for processed_data_<name>_<stamp>.csv,
// creating the output directory if needed.
func (w *Writer) ProcessedPath(name string) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, "processed_data_"+name+"_"+w.Stamp()+".csv"), nil
}

// ReadReport loads a structured report written by WriteReport. The format
// is taken from the file extension.
func ReadReport(path string) (*model.ComplianceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: read structured report")
	}
	var r model.ComplianceReport
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case FormatYAML, "yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "report: decode %s", path)
	}
	return &r, nil
}

// WriteNarrative writes conclusion_<name>.txt.
func (w *Writer) WriteNarrative(name string, r *model.ComplianceReport) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, "conclusion_"+name+".txt")
	if err := os.WriteFile(path, []byte(r.Narrative), 0o644); err != nil {
		return "", eris.Wrap(err, "report: write narrative")
	}
	return path, nil
}

// WriteRunNarrative writes the batch-level conclusion.txt.
func (w *Writer) WriteRunNarrative(s *model.RunSummary) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, RunConclusion)
	if err := os.WriteFile(path, []byte(RunNarrative(s)), 0o644); err != nil {
		return "", eris.Wrap(err, "report: write run narrative")
	}
	return path, nil
}

// summaryRecord renders a row as strings, using NA for absent scores.
func summaryRecord(row model.SummaryRow) []string {
	rec := []string{row.File}
	for _, p := range model.Pillars {
		rec = append(rec, formatScore(row.SubScores[p]))
	}
	return append(rec, formatScore(row.Composite))
}

func formatScore(v model.NullFloat) string {
	if !v.Valid {
		return model.NotAvailable
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// WriteSummaryCSV writes results.csv with one row per dataset in input order.
func (w *Writer) WriteSummaryCSV(rows []model.SummaryRow) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, SummaryCSV)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "report: create summary csv")
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(SummaryColumns); err != nil {
		return "", eris.Wrap(err, "report: write summary header")
	}
	for _, row := range rows {
		if err := cw.Write(summaryRecord(row)); err != nil {
			return "", eris.Wrap(err, "report: write summary row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", eris.Wrap(err, "report: flush summary csv")
	}
	return path, nil
}

// ReadSummaryCSV parses a results.csv written by WriteSummaryCSV.
func ReadSummaryCSV(path string) ([]model.SummaryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open summary csv")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "report: read summary csv")
	}
	if len(records) == 0 {
		return nil, eris.New("report: summary csv is empty")
	}

	var rows []model.SummaryRow
	for i, rec := range records[1:] {
		if len(rec) != len(SummaryColumns) {
			return nil, eris.Errorf("report: summary row %d has %d fields", i+1, len(rec))
		}
		row := model.SummaryRow{File: rec[0], SubScores: make(map[model.Pillar]model.NullFloat)}
		for j, p := range model.Pillars {
			v, err := parseScore(rec[j+1])
			if err != nil {
				return nil, eris.Wrapf(err, "report: summary row %d", i+1)
			}
			if v.Valid {
				row.SubScores[p] = v
			}
		}
		row.Composite, err = parseScore(rec[len(rec)-1])
		if err != nil {
			return nil, eris.Wrapf(err, "report: summary row %d", i+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseScore(s string) (model.NullFloat, error) {
	if s == model.NotAvailable {
		return model.Null(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Null(), eris.Wrapf(err, "parse score %q", s)
	}
	return model.Float(v), nil
}

// WriteSummaryXLSX writes results.xlsx with the same content as the CSV.
// Scores are numeric cells; absent scores are the text NA.
func (w *Writer) WriteSummaryXLSX(rows []model.SummaryRow) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return "", eris.Wrap(err, "report: add summary sheet")
	}

	header := sheet.AddRow()
	for _, col := range SummaryColumns {
		header.AddCell().SetString(col)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		r.AddCell().SetString(row.File)
		scores := make([]model.NullFloat, 0, len(model.Pillars)+1)
		for _, p := range model.Pillars {
			scores = append(scores, row.SubScores[p])
		}
		scores = append(scores, row.Composite)
		for _, v := range scores {
			cell := r.AddCell()
			if v.Valid {
				cell.SetFloat(v.Float)
			} else {
				cell.SetString(model.NotAvailable)
			}
		}
	}

	path := filepath.Join(w.dir, SummaryXLSX)
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "report: save summary xlsx")
	}
	return path, nil
}
