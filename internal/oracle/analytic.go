package oracle

import (
	"context"
	"time"

	"github.com/san-kum/ifd/internal/models"
)

// Analytic evaluates the closed-form uniaxial specimen. Delay simulates a
// slow external run and honours cancellation.
type Analytic struct {
	Specimen *models.Specimen
	Delay    time.Duration
}

func NewAnalytic(s *models.Specimen) *Analytic {
	return &Analytic{Specimen: s}
}

func (a *Analytic) Run(ctx context.Context, req Request) Outcome {
	start := time.Now()
	if a.Delay > 0 {
		t := time.NewTimer(a.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Failed(ctx.Err(), time.Since(start))
		case <-t.C:
		}
	}
	if err := a.Specimen.Validate(); err != nil {
		return Failed(err, time.Since(start))
	}

	r := a.Specimen.Respond(req.Displacement, req.Curve, req.Elastic)
	return Success(Response{
		Strain:       r.Strain,
		Force:        r.Force,
		Displacement: r.Displacement,
		MaxStrain:    r.MaxStrain,
	}, time.Since(start))
}
