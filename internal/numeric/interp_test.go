package numeric

import (
	"errors"
	"math"
	"testing"
)

func TestInterpolateEndpoints(t *testing.T) {
	tests := []struct {
		name           string
		x1, x2, y1, y2 float64
	}{
		{"increasing", 1, 2, 10, 20},
		{"decreasing", 0.01, 0.02, 500e6, 450e6},
		{"reversed x", 5, -5, 3, 7},
		{"tiny spacing", 0.0015, 0.0015001, 300e6, 300.5e6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, fn := range []func(x1, x2, y1, y2, x float64) (float64, error){Interpolate, Extrapolate} {
				y, err := fn(tt.x1, tt.x2, tt.y1, tt.y2, tt.x1)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if math.Abs(y-tt.y1) > 1e-9*math.Max(1, math.Abs(tt.y1)) {
					t.Errorf("at x1 got %g, want %g", y, tt.y1)
				}
				y, err = fn(tt.x1, tt.x2, tt.y1, tt.y2, tt.x2)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if math.Abs(y-tt.y2) > 1e-9*math.Max(1, math.Abs(tt.y2)) {
					t.Errorf("at x2 got %g, want %g", y, tt.y2)
				}
			}
		})
	}
}

func TestInterpolateAgreesWithExtrapolate(t *testing.T) {
	for _, x := range []float64{-3, 0, 1.5, 2, 10} {
		a, _ := Interpolate(1, 2, 10, 20, x)
		b, _ := Extrapolate(1, 2, 10, 20, x)
		if a != b {
			t.Errorf("x=%g: interpolate %g != extrapolate %g", x, a, b)
		}
		if want := 10 * x; math.Abs(a-want) > 1e-12 {
			t.Errorf("x=%g: got %g, want %g", x, a, want)
		}
	}
}

func TestInterpolateCoincident(t *testing.T) {
	if _, err := Interpolate(1, 1, 2, 3, 1); !errors.Is(err, ErrCoincident) {
		t.Errorf("expected ErrCoincident, got %v", err)
	}
	if _, err := Extrapolate(1, 1, 2, 3, 5); !errors.Is(err, ErrCoincident) {
		t.Errorf("expected ErrCoincident, got %v", err)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{1.23456789, 3, 1.235},
		{0.0123456789, 6, 0.012346},
		{412345678.12345, 3, 412345678.123},
		{0.00051234567891, 10, 0.0005123457},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); math.Abs(got-tt.want) > 1e-12*math.Max(1, tt.want) {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
