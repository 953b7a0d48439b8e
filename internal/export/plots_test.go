package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/ifd/internal/analysis"
)

func sampleResults() []analysis.Result {
	return []analysis.Result{
		{Kind: analysis.KindZero},
		{Kind: analysis.KindYield, TotalStrain: 0.0015, TrueStress: 300e6, StartStress: 300e6},
		{Kind: analysis.KindSolved, TotalStrain: 0.012, TrueStress: 400e6, StartStress: 360e6, ForceError: 2, StrainErrorPct: 0.1, HasError: true},
		{Kind: analysis.KindSolved, TotalStrain: 0.02, TrueStress: 440e6, StartStress: 400e6, ForceError: -1, StrainErrorPct: -0.05, HasError: true},
		{Kind: analysis.KindExtrapolated, TotalStrain: 0.025, TrueStress: 460e6},
	}
}

func TestResults(t *testing.T) {
	dir := t.TempDir()
	paths, err := Results(dir, sampleResults())
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 plots, got %d", len(paths))
	}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil || fi.Size() == 0 {
			t.Errorf("%s not written: %v", p, err)
		}
	}
}

func TestForceDisplacementSVG(t *testing.T) {
	p, err := ForceDisplacement([]analysis.ValidationPoint{{}, {Displacement: 0.0002, ExpForce: 3000, FEAForce: 2990}})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "fd.svg")
	if err := Save(p, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func TestNoData(t *testing.T) {
	if _, err := StressStrain(nil, true); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := ForceError(sampleResults()[:2]); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData without solved rows, got %v", err)
	}
	if _, err := ForceDisplacement(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
