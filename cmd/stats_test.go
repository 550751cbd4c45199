package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
)

func TestFormatStats(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		Total:        4,
		Reported:     2,
		Failed:       1,
		InProgress:   1,
		FailRate:     1.0 / 3.0,
		AvgComposite: model.Float(0.75),
		Availability: map[model.Pillar]float64{
			model.PillarTransparency: 1,
			model.PillarFairness:     0.5,
		},
	}

	var buf bytes.Buffer
	formatStats(&buf, snap)

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "0.75")
	assert.Contains(t, out, "Transparency:")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "50%")
}

func TestFormatStats_NoReports(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, &monitoring.MetricsSnapshot{})

	out := buf.String()
	assert.Contains(t, out, "Avg composite:")
	assert.Contains(t, out, "NA")
	assert.NotContains(t, out, "Pillar availability")
}
