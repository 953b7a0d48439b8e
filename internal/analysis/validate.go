package analysis

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/oracle"
)

// ValidationPoint compares experimental and simulated force at one displacement.
type ValidationPoint struct {
	Displacement float64 `json:"displacement"`
	ExpForce     float64 `json:"exp_force"`
	FEAForce     float64 `json:"fea_force"`
}

type Logger interface {
	Console(msg string, args ...any)
}

// Validate runs the oracle once per experimental displacement with the
// calibrated curve. The result starts with a zero point and is sorted by
// displacement.
func Validate(ctx context.Context, o oracle.Oracle, curve []material.Point, e material.Elastic, fd []dataset.ForceDisplacement, log Logger) ([]ValidationPoint, error) {
	if len(curve) == 0 {
		return nil, material.ErrEmptyCurve
	}
	out := make([]ValidationPoint, 0, len(fd)+1)
	out = append(out, ValidationPoint{})

	for i, p := range fd {
		resp, err := o.Evaluate(ctx, oracle.Request{Displacement: p.Displacement, Curve: curve, Elastic: e})
		if err != nil {
			return out, fmt.Errorf("analysis: validation point %d: %w", i, err)
		}
		if log != nil {
			log.Console("validation point", "i", i+1, "of", len(fd), "displacement", p.Displacement,
				"exp_force", p.Force, "fea_force", resp.Force)
		}
		out = append(out, ValidationPoint{Displacement: p.Displacement, ExpForce: p.Force, FEAForce: resp.Force})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Displacement < out[j].Displacement })
	return out, nil
}

func WriteValidationCSV(w io.Writer, pts []ValidationPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"exp_displacement", "exp_force", "fea_force"}); err != nil {
		return err
	}
	for _, p := range pts {
		if err := cw.Write([]string{ff(p.Displacement), ff(p.ExpForce), ff(p.FEAForce)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

