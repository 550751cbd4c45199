package dataset

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// missingTokens are cell values read as absent.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"#n/a": true,
	"-nan": true,
}

// IsMissing reports whether a raw cell is an absent value.
func IsMissing(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

// parseNumeric parses a cell as a number. true/false read as 1/0.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	switch strings.ToLower(raw) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FromRecords builds a dataset from a header and data rows. Short rows are
// padded with missing values; extra cells are ignored. A column is numeric
// when every non-missing cell parses as a number, otherwise text. Blank
// headers become "Unnamed: <i>"; a repeated header h becomes h.1, h.2, ...
func FromRecords(name string, header []string, rows [][]string) (*model.Dataset, error) {
	if len(header) == 0 {
		return nil, eris.Errorf("dataset: %s has an empty header", name)
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		h = dedupName(h, seen)
		seen[h] = true
		header[i] = h
	}

	ds := &model.Dataset{Name: name, Columns: make([]model.Column, len(header))}
	for j, h := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		ds.Columns[j] = inferColumn(h, cells)
	}
	return ds, nil
}

// dedupName returns h, or h.<k> for the smallest k >= 1 not yet taken.
func dedupName(h string, taken map[string]bool) string {
	if !taken[h] {
		return h
	}
	for k := 1; ; k++ {
		if c := h + "." + strconv.Itoa(k); !taken[c] {
			return c
		}
	}
}

func inferColumn(name string, cells []string) model.Column {
	nums := make([]float64, len(cells))
	missing := make([]bool, len(cells))
	numeric := true
	for i, c := range cells {
		if IsMissing(c) {
			missing[i] = true
			continue
		}
		v, ok := parseNumeric(c)
		if !ok {
			numeric = false
			break
		}
		nums[i] = v
	}

	if numeric {
		return model.Column{Name: name, Kind: model.KindNumeric, Nums: nums, Missing: missing}
	}

	texts := make([]string, len(cells))
	for i, c := range cells {
		if IsMissing(c) {
			missing[i] = true
			continue
		}
		missing[i] = false
		texts[i] = c
	}
	return model.NewTextColumn(name, texts, missing)
}
