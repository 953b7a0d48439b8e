package calib_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/oracle"
)

// rowOneCurve is a curve shaped for solving row 1: yield point, trial, tail.
func rowOneCurve() *material.Curve {
	c := material.NewCurve(material.ReferenceTemperature)
	c.Seed(0, 300e6)
	Expect(c.BeginRow(0.01, 400e6)).To(Succeed())
	return c
}

func linear(k float64) func(oracle.Request) (oracle.Response, error) {
	return func(req oracle.Request) (oracle.Response, error) {
		return oracle.Response{
			Strain:       k * req.Displacement,
			Force:        1000,
			Displacement: req.Displacement,
			MaxStrain:    1.2 * k * req.Displacement,
		}, nil
	}
}

var _ = Describe("DisplacementSearch", func() {
	var (
		log *recorder
		mem *ledger.Memory
		cfg calib.Config
		ctx context.Context
		in  calib.DisplacementInput
	)

	BeforeEach(func() {
		log = &recorder{}
		mem = &ledger.Memory{}
		cfg = calib.DefaultConfig()
		ctx = context.Background()
		in = calib.DisplacementInput{
			Row:          1,
			StressTry:    1,
			Stress:       400e6,
			TargetStrain: 0.012,
			Start:        0.0003,
			Curve:        rowOneCurve(),
			Elastic:      cfg.Elastic,
		}
	})

	It("accepts the starting displacement when it already meets the tolerance", func() {
		o := &stub{fn: linear(40)}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		res, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeTrue())
		Expect(o.calls).To(Equal(1))
		Expect(res.LastTried).To(Equal(0.0003))
	})

	It("scales by the growth factor after one miss and hits a linear target on the third call", func() {
		o := &stub{fn: linear(20)}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		res, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeTrue())
		Expect(o.calls).To(Equal(3))

		Expect(o.requests[1].Displacement).To(BeNumerically("~", 0.00036, 1e-12))
		Expect(o.requests[2].Displacement).To(BeNumerically("~", 0.0006, 1e-10))
		Expect(res.Response.Strain).To(BeNumerically("~", 0.012, 0.012*cfg.StrainTolerance))
		Expect(s.Calls()).To(Equal(3))
	})

	It("interpolates across the tightest bracket once the target is straddled", func() {
		// strain = 20 d for d below 0.0005, steeper above: the first
		// extrapolation overshoots and the fourth guess must be interpolated.
		o := &stub{fn: func(req oracle.Request) (oracle.Response, error) {
			d := req.Displacement
			strain := 20 * d
			if d > 0.0005 {
				strain = 0.01 + 40*(d-0.0005)
			}
			return oracle.Response{Strain: strain, Displacement: d, Force: 1}, nil
		}}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		res, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeTrue())
		Expect(res.Response.Strain).To(BeNumerically("~", 0.012, 0.012*cfg.StrainTolerance))

		strains := make([]float64, len(res.Trials))
		for i, t := range res.Trials {
			strains[i] = t.Strain
		}
		Expect(strains).To(ContainElement(BeNumerically(">", 0.012)))
		Expect(log.diagnostic).To(ContainElement(ContainSubstring("interpolated")))
	})

	It("abandons after exactly 19 calls when the strain never moves", func() {
		o := &stub{fn: func(req oracle.Request) (oracle.Response, error) {
			return oracle.Response{Strain: 0.02, Displacement: req.Displacement, Force: 1}, nil
		}}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		res, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Converged).To(BeFalse())
		Expect(o.calls).To(Equal(19))
		Expect(res.Trials).To(HaveLen(19))
		Expect(res.Response.Strain).To(Equal(0.02))
		Expect(res.LastTried).To(Equal(o.requests[18].Displacement))
		Expect(log.warn).To(HaveLen(1))
		Expect(log.diagnostic).To(ContainElement(ContainSubstring("coincide")))
	})

	It("records every attempt in the ledger and the sink", func() {
		o := &stub{fn: linear(20)}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		res, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(mem.Trials).To(Equal([]ledger.Trial(res.Trials)))
		for i, t := range mem.Trials {
			Expect(t.Row).To(Equal(1))
			Expect(t.DispTry).To(Equal(i + 1))
			Expect(t.Iteration).To(Equal(i + 1))
			Expect(t.Stress).To(Equal(400e6))
			Expect(t.TrialDisp).To(Equal(o.requests[i].Displacement))
		}
	})

	It("feeds the current curve to the oracle", func() {
		o := &stub{fn: linear(40)}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)
		_, err := s.Run(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(o.requests[0].Curve).To(Equal(in.Curve.Points()))
		Expect(o.requests[0].Elastic).To(Equal(cfg.Elastic))
	})

	It("fails loudly on a degenerate observation", func() {
		o := &stub{fn: func(req oracle.Request) (oracle.Response, error) {
			return oracle.Response{Strain: math.NaN(), Displacement: req.Displacement}, nil
		}}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		_, err := s.Run(ctx, in)
		Expect(err).To(MatchError(numeric.ErrDegenerateBracket))
		Expect(o.calls).To(Equal(2))
	})

	It("refuses to call the oracle with a curve of the wrong shape", func() {
		o := &stub{fn: linear(20)}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)
		in.Row = 2

		_, err := s.Run(ctx, in)
		Expect(err).To(MatchError(calib.ErrCurveShape))
		Expect(o.calls).To(BeZero())
	})

	It("propagates oracle failures", func() {
		boom := errors.New("boom")
		o := &stub{fn: func(oracle.Request) (oracle.Response, error) {
			return oracle.Response{}, boom
		}}
		s := calib.NewDisplacementSearch(o, cfg, log, mem)

		_, err := s.Run(ctx, in)
		Expect(err).To(MatchError(boom))
		Expect(mem.Trials).To(BeEmpty())
	})
})

var _ = DescribeTable("WithinStrain",
	func(strain float64, want bool) {
		Expect(calib.WithinStrain(strain, 4, 0.25)).To(Equal(want))
	},
	Entry("on target", 4.0, true),
	Entry("inside", 4.5, true),
	Entry("lower bound is inclusive", 3.0, true),
	Entry("upper bound is inclusive", 5.0, true),
	Entry("below", 2.99, false),
	Entry("above", 5.01, false),
)
