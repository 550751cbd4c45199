package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/compliance-cli/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "a\n1\n")
	writeFile(t, dir, "a.XLSX", "")
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.XLSX"), filepath.Join(dir, "b.csv")}, paths)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	single := writeFile(t, dir, "z.csv", "a\n1\n")
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "a.csv", "a\n1\n")

	paths, err := Expand([]string{single, sub})
	require.NoError(t, err)
	assert.Equal(t, []string{single, filepath.Join(sub, "a.csv")}, paths)

	_, err = Expand([]string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}

func TestLoadCSV_InfersKinds(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loans.csv", strings.Join([]string{
		"age,Sex,income,approved,notes,flag",
		"30,F,1000.5,1,hello,true",
		"NA,M,,0,,false",
		"45,,2000,1,\"a, b\",TRUE",
	}, "\n")+"\n")

	ds, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "loans.csv", ds.Name)
	assert.Equal(t, []string{"age", "Sex", "income", "approved", "notes", "flag"}, ds.ColumnNames())
	assert.Equal(t, 3, ds.Rows())

	age := ds.Columns[0]
	assert.Equal(t, model.KindNumeric, age.Kind)
	assert.Equal(t, []bool{false, true, false}, age.Missing)
	assert.Equal(t, 45.0, age.Nums[2])

	sex := ds.Columns[1]
	assert.Equal(t, model.KindText, sex.Kind)
	assert.Equal(t, []string{"F", "M", ""}, sex.Texts)
	assert.Equal(t, []bool{false, false, true}, sex.Missing)

	assert.Equal(t, model.KindNumeric, ds.Columns[2].Kind)
	assert.True(t, ds.Columns[2].Missing[1])

	assert.Equal(t, "a, b", ds.Columns[4].Texts[2])

	flag := ds.Columns[5]
	assert.Equal(t, model.KindNumeric, flag.Kind)
	assert.Equal(t, []float64{1, 0, 1}, flag.Nums)
}

func TestLoadCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(context.Background(), writeFile(t, dir, "empty.csv", ""))
	assert.Error(t, err)

	_, err = Load(context.Background(), writeFile(t, dir, "x.json", "{}"))
	assert.True(t, eris.Is(err, ErrUnsupportedFormat))

	_, err = Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, writeFile(t, dir, "ok.csv", "a\n1\n"))
	assert.Error(t, err)
}

func TestFromRecords(t *testing.T) {
	ds, err := FromRecords("t", []string{"\ufeffid", " name ", ""}, [][]string{
		{"1", "x"},
		{"2", "y", "extra", "ignored"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "Unnamed: 2"}, ds.ColumnNames())
	assert.Equal(t, []bool{true, false}, ds.Columns[2].Missing)
	assert.Equal(t, model.KindText, ds.Columns[2].Kind)

	allMissing, err := FromRecords("t", []string{"a"}, [][]string{{""}, {"NaN"}})
	require.NoError(t, err)
	assert.Equal(t, model.KindNumeric, allMissing.Columns[0].Kind)

	_, err = FromRecords("t", nil, nil)
	assert.Error(t, err)
}

func TestLoadCSV_DuplicateHeaders(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dup.csv", "a,a,b,a.1,a\n1,2,x,3,4\n")

	ds, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "b", "a.1.1", "a.2"}, ds.ColumnNames())
	assert.Equal(t, []float64{2}, ds.Columns[1].Nums)
	assert.Equal(t, []float64{4}, ds.Columns[4].Nums)
}

func TestIsMissing(t *testing.T) {
	for _, s := range []string{"", " ", "NA", "n/a", "NaN", "null", "None", "#N/A"} {
		assert.True(t, IsMissing(s), s)
	}
	for _, s := range []string{"0", "Missing", "no"} {
		assert.False(t, IsMissing(s), s)
	}
}

func TestLoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	require.NoError(t, err)
	for _, rec := range [][]string{{"x", "audit_log"}, {"1", "ok"}, {"2", "late"}} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	ds, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "book.xlsx", ds.Name)
	assert.Equal(t, []string{"x", "audit_log"}, ds.ColumnNames())
	assert.Equal(t, model.KindNumeric, ds.Columns[0].Kind)
	assert.Equal(t, []float64{1, 2}, ds.Columns[0].Nums)
	assert.Equal(t, []string{"ok", "late"}, ds.Columns[1].Texts)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "nope"})
	assert.Error(t, err)
	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "data"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	ds := &model.Dataset{Name: "p", Columns: []model.Column{
		model.NewNumericColumn("age", []float64{30, 0.25}),
		model.NewTextColumn("note", []string{"a,b", ""}, []bool{false, true}),
	}}
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(ds, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "age,note\n30,\"a,b\"\n0.25,\n", string(data))

	back, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ds.Columns[0].Nums, back.Columns[0].Nums)
	assert.Equal(t, ds.Columns[1].Missing, back.Columns[1].Missing)
}
