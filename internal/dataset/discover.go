// Package dataset discovers, loads and exports tabular datasets.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = eris.New("dataset: unsupported file format")

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Discover returns the loadable files directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// Expand resolves a mix of files and directories into dataset paths,
// keeping argument order and expanding directories with Discover.
func Expand(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: stat %s", a)
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		found, err := Discover(a)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// Load reads a CSV or XLSX file into a Dataset named after the file.
func Load(ctx context.Context, path string) (*model.Dataset, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "dataset: open %s", path)
		}
		defer f.Close()
		records, err = ReadCSV(ctx, f, CSVOptions{LazyQuotes: true})
	case ".xlsx":
		records, err = ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "dataset: load %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: %s has no header row", path)
	}
	return FromRecords(filepath.Base(path), records[0], records[1:])
}
