package material

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCurveRowLifecycle(t *testing.T) {
	c := NewCurve(ReferenceTemperature)
	c.Seed(0, 300e6)

	if c.Len() != 1 || c.Finalized() != 1 {
		t.Fatalf("seeded curve: len %d finalized %d", c.Len(), c.Finalized())
	}

	if err := c.BeginRow(0.01, 400e6); err != nil {
		t.Fatalf("begin row: %v", err)
	}
	if c.Len() != c.Finalized()+2 {
		t.Errorf("expected finalized+2 points, got len %d finalized %d", c.Len(), c.Finalized())
	}

	pts := c.Points()
	tail := pts[len(pts)-1]
	if math.Abs(tail.Strain-0.015) > 1e-12 {
		t.Errorf("tail strain = %g, want 0.015", tail.Strain)
	}
	if math.Abs(tail.Stress-450e6) > 1e-3 {
		t.Errorf("tail stress = %g, want 450e6", tail.Stress)
	}

	for _, s := range []float64{410e6, 390e6, 405e6} {
		if err := c.SetTrial(0.01, s); err != nil {
			t.Fatalf("set trial: %v", err)
		}
		if c.Len() != 3 {
			t.Errorf("trial must replace, not append: len %d", c.Len())
		}
	}
	if got := c.Points()[1].Stress; got != 405e6 {
		t.Errorf("trial stress = %g, want 405e6", got)
	}

	if err := c.BeginRow(0.02, 450e6); err != nil {
		t.Fatalf("begin second row: %v", err)
	}
	if c.Len() != 4 || c.Finalized() != 2 {
		t.Errorf("second row: len %d finalized %d", c.Len(), c.Finalized())
	}
	pts = c.Points()
	if pts[1].Stress != 405e6 {
		t.Errorf("previous trial should be finalized at 405e6, got %g", pts[1].Stress)
	}
	// tail continues the segment from the finalized 0.01 point
	want := 405e6 + (450e6-405e6)*(0.03-0.01)/(0.02-0.01)
	if math.Abs(pts[3].Stress-want) > 1e-3 {
		t.Errorf("tail stress = %g, want %g", pts[3].Stress, want)
	}
}

func TestReplaceTrailing(t *testing.T) {
	c := NewCurve(ReferenceTemperature)
	c.Seed(0, 1)

	tests := []struct {
		name  string
		count int
		ok    bool
	}{
		{"negative", -1, false},
		{"too many", 2, false},
		{"all", 1, true},
		{"none", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ReplaceTrailing(tt.count, Point{Strain: 1, Stress: 2})
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrTrailingCount) {
				t.Errorf("expected ErrTrailingCount, got %v", err)
			}
		})
	}
}

func TestBeginRowEmpty(t *testing.T) {
	c := NewCurve(ReferenceTemperature)
	if err := c.BeginRow(0.01, 1); !errors.Is(err, ErrEmptyCurve) {
		t.Errorf("expected ErrEmptyCurve, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	pts := []Point{{Temp: 22, Strain: 0, Stress: 3e8}, {Temp: 22, Strain: 0.01, Stress: 4e8}}
	if err := WriteCSV(&buf, pts); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "temp,strain,stress" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "22,0.01,4e+08" {
		t.Errorf("row = %q", lines[2])
	}

	buf.Reset()
	if err := WriteElasticCSV(&buf, Elastic{Youngs: 2e11, Poisson: 0.3, Temp: 22}); err != nil {
		t.Fatalf("write elastic: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "youngs,temp,poisson\n2e+11,22,0.3") {
		t.Errorf("elastic csv = %q", buf.String())
	}
}
