package experiment

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/wave"
)

func regular(duration float64) (*config.Config, wave.Record) {
	cfg := config.GetPreset("regular-8s")
	Expect(cfg).NotTo(BeNil())
	cfg.Wave.Synthetic.Duration = duration
	s := cfg.Wave.Synthetic
	rec, err := wave.Sinusoid(s.Amplitude, s.Period, s.Duration, s.Dt)
	Expect(err).NotTo(HaveOccurred())
	return cfg, rec
}

var _ = Describe("Experiment", func() {
	var (
		ctx = context.Background()
		mid = optim.Candidate{Mass: 12500, Damping: 25000}
	)

	Describe("Evaluate", func() {
		It("classifies a moderate buoy in a 1 m regular sea as feasible", func() {
			cfg, rec := regular(200)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			ev := exp.Evaluate(ctx, mid)
			Expect(ev.Status).To(Equal(optim.StatusFeasible))
			Expect(ev.MeanPower).To(BeNumerically(">", 0))
			Expect(ev.PeakAcceleration).To(BeNumerically(">", 0))
			Expect(ev.PeakAcceleration).To(BeNumerically("<", cfg.Constraints.MaxAcceleration))
			Expect(ev.MaxDisplacement).To(BeNumerically(">", 0.5))
			Expect(ev.Violations).To(BeEmpty())
		})

		It("flags a violated acceleration limit", func() {
			cfg, rec := regular(200)
			cfg.Constraints.MaxAcceleration = 0.01
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			ev := exp.Evaluate(ctx, mid)
			Expect(ev.Status).To(Equal(optim.StatusInfeasible))
			Expect(ev.Violations).To(HaveLen(1))
			Expect(ev.Violations[0].Name).To(Equal("peak_acceleration"))
			Expect(ev.Violation()).To(BeNumerically(">", 0))
		})

		It("ignores disabled limits", func() {
			cfg, rec := regular(200)
			cfg.Constraints.MaxDisplacement = 0
			cfg.Constraints.MaxPTOForce = 0
			cfg.Constraints.MaxAcceleration = 0
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			Expect(exp.Evaluate(ctx, mid).Status).To(Equal(optim.StatusFeasible))
		})

		It("rejects candidates outside the bounds without simulating", func() {
			cfg, rec := regular(200)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			ev := exp.Evaluate(ctx, optim.Candidate{Mass: 1, Damping: 25000})
			Expect(ev.Status).To(Equal(optim.StatusRejected))
			Expect(ev.Reason).To(Equal("out of bounds"))
			Expect(ev.MeanPower).To(BeZero())
		})

		It("rejects physically invalid parameters", func() {
			cfg, rec := regular(200)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			c := exp.Config()
			c.Bounds.Mass.Min = -100
			loose, err := New(c, exp.Forcing())
			Expect(err).NotTo(HaveOccurred())

			ev := loose.Evaluate(ctx, optim.Candidate{Mass: -10, Damping: 25000})
			Expect(ev.Status).To(Equal(optim.StatusRejected))
			Expect(ev.Reason).To(Equal("invalid parameters"))
			Expect(errors.Is(ev.Err, dynamo.ErrInvalidParameter)).To(BeTrue())
		})

		It("rejects when no samples remain after the transient cutoff", func() {
			cfg, rec := regular(40)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			ev := exp.Evaluate(ctx, mid)
			Expect(ev.Status).To(Equal(optim.StatusRejected))
		})

		It("fails when the context is cancelled", func() {
			cfg, rec := regular(200)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			ev := exp.Evaluate(cancelled, mid)
			Expect(ev.Status).To(Equal(optim.StatusFailed))
			Expect(errors.Is(ev.Err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("Run", func() {
		It("keeps the trajectory on the output grid", func() {
			cfg, rec := regular(100)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			run, err := exp.Run(ctx, mid)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Result.Len()).To(Equal(401))
			Expect(run.Power).To(HaveLen(401))
			Expect(run.Properties.Mass).To(Equal(mid.Mass))
			Expect(run.Peak.Abs()).To(Equal(run.Evaluation.PeakAcceleration))
		})
	})

	Describe("Setup", func() {
		It("estimates the peak frequency from the record", func() {
			cfg, rec := regular(600)
			cfg.Physics.AutoPeakFrequency = true
			cfg.Physics.PeakFrequency = 2.0
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(exp.Config().Base.Environment.PeakFrequency).To(BeNumerically("~", 0.785, 0.02))
		})

		It("refuses an invalid configuration", func() {
			cfg, rec := regular(100)
			cfg.Buoy.Diameter = 0
			_, err := Setup(cfg, rec)
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})
	})

	Describe("optimization end to end", func() {
		It("finds a feasible optimum for the 600 s regular wave", func() {
			cfg, rec := regular(600)
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			strategy, err := NewRegistry().GetStrategy(cfg)
			Expect(err).NotTo(HaveOccurred())

			out, err := strategy.Optimize(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Feasible).To(BeTrue())
			Expect(out.Best.Status).To(Equal(optim.StatusFeasible))
			Expect(out.Best.MeanPower).To(BeNumerically(">", 0))
			Expect(out.Best.PeakAcceleration).To(BeNumerically("<=", 2.0))
			Expect(cfg.Bounds().Contains(out.Best.Candidate)).To(BeTrue())
		})

		It("is deterministic for a fixed seed", func() {
			cfg, rec := regular(200)
			cfg.Optimizer.MaxGenerations = 3
			exp, err := Setup(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			reg := NewRegistry()
			a, _ := reg.GetStrategy(cfg)
			b, _ := reg.GetStrategy(cfg)
			first, err := a.Optimize(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			second, err := b.Optimize(ctx, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Best.Candidate).To(Equal(first.Best.Candidate))
			Expect(second.Best.Score).To(Equal(first.Best.Score))
		})
	})
})

var _ = Describe("Registry", func() {
	It("lists the strategies", func() {
		Expect(NewRegistry().ListStrategies()).To(Equal([]string{config.StrategyDE, config.StrategyGrid}))
	})

	It("builds a grid search", func() {
		cfg := config.GetPreset("sweep")
		s, err := NewRegistry().GetStrategy(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&optim.GridSearch{}))
	})

	It("reports unknown strategies", func() {
		cfg := config.DefaultConfig()
		cfg.Optimizer.Strategy = "annealing"
		_, err := NewRegistry().GetStrategy(cfg)
		Expect(err).To(MatchError(ContainSubstring("unknown strategy")))
	})
})
