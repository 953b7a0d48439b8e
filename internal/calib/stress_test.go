package calib_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/oracle"
)

// trialForce reports strain = 20 d and a force proportional to the stress of
// the trial point (the one before the synthetic tail).
func trialForce(area float64) func(oracle.Request) (oracle.Response, error) {
	return func(req oracle.Request) (oracle.Response, error) {
		trial := req.Curve[len(req.Curve)-2]
		return oracle.Response{
			Strain:       20 * req.Displacement,
			Force:        area * trial.Stress,
			Displacement: req.Displacement,
			MaxStrain:    25 * req.Displacement,
		}, nil
	}
}

func constantForce(f float64) func(oracle.Request) (oracle.Response, error) {
	return func(req oracle.Request) (oracle.Response, error) {
		return oracle.Response{Strain: 20 * req.Displacement, Force: f, Displacement: req.Displacement}, nil
	}
}

var _ = Describe("StressSearch", func() {
	var (
		log *recorder
		mem *ledger.Memory
		cfg calib.Config
		ctx context.Context
	)

	BeforeEach(func() {
		log = &recorder{}
		mem = &ledger.Memory{}
		cfg = calib.DefaultConfig()
		ctx = context.Background()
	})

	search := func(o oracle.Oracle) *calib.StressSearch {
		d := calib.NewDisplacementSearch(o, cfg, log, mem)
		return calib.NewStressSearch(d, cfg, log, mem)
	}

	seeded := func() *material.Curve {
		c := material.NewCurve(material.ReferenceTemperature)
		c.Seed(0, 300e6)
		return c
	}

	rowOne := func(c *material.Curve, force, start float64) calib.StressInput {
		return calib.StressInput{
			Row:          1,
			Exp:          dataset.Row{TotalStrain: 0.012, PlasticStrain: 0.01, Force: force},
			TargetStrain: 0.012,
			Start:        start,
			Floor:        300e6,
			StartDisp:    0.0003,
			Curve:        c,
			Elastic:      cfg.Elastic,
		}
	}

	It("scales by the force ratio after the first trial", func() {
		o := &stub{fn: trialForce(cfg.Area)}
		c := seeded()

		res, err := search(o).Run(ctx, rowOne(c, 4000, 360e6))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeTrue())
		Expect(res.Shortfall).To(BeNil())
		Expect(res.Trials).To(HaveLen(2))
		Expect(res.Stress).To(BeNumerically("~", 400e6, 1e-3))
		Expect(res.Response.Force).To(BeNumerically("~", 4000, cfg.ForceTolerance()))

		pts := c.Points()
		Expect(pts).To(HaveLen(3))
		Expect(pts[1].Stress).To(Equal(res.Stress))
		Expect(pts[2].Strain).To(BeNumerically("~", 0.015, 1e-15))
	})

	It("starts every stress trial from the last displacement tried", func() {
		o := &stub{fn: trialForce(cfg.Area)}
		_, err := search(o).Run(ctx, rowOne(seeded(), 4000, 360e6))
		Expect(err).NotTo(HaveOccurred())

		// three displacement calls for the first stress, then the second
		// stress starts where the first left off and is accepted at once
		Expect(o.requests).To(HaveLen(4))
		Expect(o.requests[3].Displacement).To(Equal(o.requests[2].Displacement))
		Expect(mem.Stresses).To(HaveLen(2))
		Expect(mem.Stresses[0].ForceDelta).To(BeNumerically("~", -400, 1e-6))
		Expect(mem.Stresses[1].Iteration).To(Equal(4))
	})

	It("clamps to the previous row and exits when that stress was already tried", func() {
		o := &stub{fn: trialForce(cfg.Area)}
		c := seeded()
		Expect(c.BeginRow(0.01, 400e6)).To(Succeed())

		in := calib.StressInput{
			Row:          2,
			Exp:          dataset.Row{TotalStrain: 0.02, PlasticStrain: 0.018, Force: 3500},
			TargetStrain: 0.02,
			Start:        400e6,
			Floor:        400e6,
			StartDisp:    0.0003,
			Curve:        c,
			Elastic:      cfg.Elastic,
		}
		res, err := search(o).Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Stress).To(Equal(400e6))
		Expect(res.Converged).To(BeFalse())
		Expect(res.Shortfall).To(MatchError(calib.ErrToleranceNotMet))
		Expect(res.Trials).To(HaveLen(1))
		Expect(res.Response.Force).To(BeNumerically("~", 4000, 1e-6))
		Expect(log.warn).To(ContainElement(ContainSubstring("already tried")))
		Expect(log.diagnostic).To(ContainElement(ContainSubstring("lower than the previous point")))
		Expect(c.Points()[2].Stress).To(Equal(400e6))
	})

	It("terminates after the stress attempt cap when the force never moves", func() {
		cfg.MaxStressAttempts = 5
		o := &stub{fn: constantForce(1000)}

		res, err := search(o).Run(ctx, rowOne(seeded(), 2000, 400e6))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeFalse())
		Expect(res.Trials).To(HaveLen(5))
		Expect(res.Shortfall).To(MatchError(calib.ErrToleranceNotMet))
		Expect(res.Trials[1].Stress).To(BeNumerically("~", 800e6, 1e-3))
		Expect(res.Trials[2].Stress).To(BeNumerically("~", 960e6, 1e-3))
		Expect(log.diagnostic).To(ContainElement(ContainSubstring("forces coincide")))
	})

	It("stays on the floor when every proposal undershoots it", func() {
		o := &stub{fn: constantForce(5000)}
		in := rowOne(seeded(), 4000, 300e6)

		res, err := search(o).Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Stress).To(Equal(300e6))
		Expect(res.Converged).To(BeFalse())
	})

	It("wraps oracle failures with the row", func() {
		o := &stub{fn: func(oracle.Request) (oracle.Response, error) {
			return oracle.Response{}, oracle.ErrRepeatedFailure
		}}
		_, err := search(o).Run(ctx, rowOne(seeded(), 4000, 360e6))

		var re *calib.RowError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Row).To(Equal(1))
		Expect(re.StressTry).To(Equal(1))
		Expect(err).To(MatchError(oracle.ErrRepeatedFailure))
	})

	It("fails before any oracle call when the row's plastic strain does not advance", func() {
		o := &stub{fn: constantForce(4000)}
		c := material.NewCurve(material.ReferenceTemperature)
		c.Seed(0.01, 300e6)

		_, err := search(o).Run(ctx, rowOne(c, 4000, 360e6))

		var re *calib.RowError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.StressTry).To(BeZero())
		Expect(err.Error()).NotTo(ContainSubstring("stress try"))
		Expect(o.calls).To(BeZero())
	})
})
