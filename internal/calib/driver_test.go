package calib_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/models"
	"github.com/san-kum/ifd/internal/oracle"
)

// spy records the curve length of every request it forwards.
type spy struct {
	inner oracle.Oracle
	lens  []int
}

func (s *spy) Evaluate(ctx context.Context, req oracle.Request) (oracle.Response, error) {
	s.lens = append(s.lens, len(req.Curve))
	return s.inner.Evaluate(ctx, req)
}

type rowEvents struct {
	started  []int
	finished []calib.OutputRow
}

func (r *rowEvents) RowStarted(row, last int, strain, force float64) {
	r.started = append(r.started, row)
}

func (r *rowEvents) RowFinished(o calib.OutputRow) {
	r.finished = append(r.finished, o)
}

var _ = Describe("Driver", func() {
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

	stubRows := func() []dataset.Row {
		return []dataset.Row{
			{TotalStrain: 0.0015, PlasticStrain: 0, Force: 3000, StartStress: 300e6, EstDisplacement: 0.0001},
			{TotalStrain: 0.012, PlasticStrain: 0.01, Force: 4000, StartStress: 380e6, EstDisplacement: 0.0005},
			{TotalStrain: 0.02, PlasticStrain: 0.018, Force: 4200, StartStress: 350e6, EstDisplacement: 0.0009},
		}
	}

	Context("against the analytic specimen", func() {
		truth := []material.Point{
			{Temp: material.ReferenceTemperature, Strain: 0, Stress: 300e6},
			{Temp: material.ReferenceTemperature, Strain: 0.01, Stress: 400e6},
			{Temp: material.ReferenceTemperature, Strain: 0.03, Stress: 450e6},
		}

		It("reproduces the known true stresses and keeps the curve shape on every call", func() {
			spec := models.NewSpecimen()
			rows := models.Synthesize(spec, truth, cfg.Elastic.Youngs, 0.9, 0.8)

			runner := oracle.NewRunner(oracle.NewAnalytic(spec), oracle.RunnerConfig{
				InitialTimeout: time.Minute,
				MinTimeout:     time.Second,
				TimeoutFactor:  3,
				MaxTries:       4,
			}, nil)
			sp := &spy{inner: runner}
			events := &rowEvents{}

			d := calib.NewDriver(sp, cfg, log, mem)
			d.Observer = events
			out, sum, err := d.Run(ctx, rows)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(3))

			for i := 1; i < len(out); i++ {
				Expect(out[i].Solved).To(BeTrue())
				Expect(out[i].Converged).To(BeTrue(), "row %d: %s", i, out[i].Note)
				Expect(out[i].TrueStress).To(BeNumerically("~", truth[i].Stress, 1e6))
				Expect(out[i].FEAForce).To(BeNumerically("~", rows[i].Force, cfg.ForceTolerance()))
				Expect(calib.WithinStrain(out[i].FEAStrain, rows[i].TotalStrain, cfg.StrainTolerance)).To(BeTrue())
			}
			Expect(out[0].Yield).To(BeTrue())
			Expect(out[0].TrueStress).To(Equal(300e6))

			Expect(sp.lens).To(HaveLen(len(mem.Trials)))
			for k, t := range mem.Trials {
				Expect(sp.lens[k]).To(Equal(t.Row+2), "call %d", k)
			}

			Expect(sum.Invocations).To(Equal(runner.Calls()))
			Expect(sum.Invocations).To(Equal(len(mem.Trials)))
			Expect(sum.Converged).To(Equal(2))
			Expect(sum.Failed).To(BeEmpty())
			Expect(events.started).To(Equal([]int{1, 2}))
			Expect(events.finished).To(HaveLen(2))

			final := d.Curve()
			Expect(final).To(HaveLen(4))
			Expect(final[2].Stress).To(Equal(out[2].TrueStress))
		})
	})

	It("raises starting stresses below their predecessor before each row", func() {
		o := &stub{fn: trialForce(cfg.Area)}
		out, _, err := calib.NewDriver(o, cfg, log, mem).Run(ctx, stubRows())
		Expect(err).NotTo(HaveOccurred())

		Expect(log.diagnostic).To(ContainElement(ContainSubstring("amended initial stress")))
		Expect(mem.Stresses[0].Stress).To(Equal(380e6))

		var firstRow2 ledger.StressTrial
		for _, st := range mem.Stresses {
			if st.Row == 2 {
				firstRow2 = st
				break
			}
		}
		Expect(firstRow2.Stress).To(Equal(out[1].TrueStress))
		Expect(out[2].TrueStress).To(BeNumerically("~", 420e6, 1e-3))
	})

	It("never finalizes a row below its predecessor", func() {
		rows := stubRows()
		rows[2].Force = 3500
		o := &stub{fn: trialForce(cfg.Area)}

		out, sum, err := calib.NewDriver(o, cfg, log, mem).Run(ctx, rows)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[2].TrueStress).To(Equal(out[1].TrueStress))
		Expect(out[2].Converged).To(BeFalse())
		Expect(out[2].Solved).To(BeTrue())
		Expect(out[2].Note).To(ContainSubstring("tolerance not met"))
		Expect(sum.Failed).To(Equal([]int{2}))
		Expect(sum.Converged).To(Equal(1))
	})

	It("returns the rows solved so far when the oracle gives up", func() {
		rows := stubRows()
		inner := trialForce(cfg.Area)
		o := &stub{}
		o.fn = func(req oracle.Request) (oracle.Response, error) {
			if len(req.Curve) == 4 {
				return oracle.Response{}, oracle.ErrRepeatedFailure
			}
			return inner(req)
		}

		out, sum, err := calib.NewDriver(o, cfg, log, mem).Run(ctx, rows)
		Expect(err).To(MatchError(oracle.ErrRepeatedFailure))

		var re *calib.RowError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Row).To(Equal(2))
		Expect(out[1].Solved).To(BeTrue())
		Expect(out[2].Solved).To(BeFalse())
		Expect(sum.Solved).To(Equal(1))
		Expect(log.warn).To(ContainElement(ContainSubstring("run aborted")))
	})

	It("stops when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		o := &stub{fn: trialForce(cfg.Area)}

		_, _, err := calib.NewDriver(o, cfg, log, mem).Run(cctx, stubRows())
		Expect(err).To(MatchError(context.Canceled))
		Expect(o.calls).To(BeZero())
	})

	It("rejects datasets without a row to solve", func() {
		o := &stub{fn: trialForce(cfg.Area)}
		_, _, err := calib.NewDriver(o, cfg, log, mem).Run(ctx, stubRows()[:1])
		Expect(err).To(MatchError(calib.ErrTooFewRows))
	})

	It("rejects an invalid configuration", func() {
		cfg.Area = 0
		o := &stub{fn: trialForce(cfg.Area)}
		_, _, err := calib.NewDriver(o, cfg, log, mem).Run(ctx, stubRows())
		Expect(err).To(MatchError(ContainSubstring("area must be positive")))
	})
})
