package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/integrators"
	"github.com/san-kum/cellsim/internal/models/gate"
	"github.com/san-kum/cellsim/internal/models/predatorprey"
	"github.com/san-kum/cellsim/internal/sim"
)

var _ = Describe("Simulator pipeline", func() {
	var (
		ctx context.Context
		cfg dynamo.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = dynamo.DefaultConfig()
		cfg.Dt = 0.01
		cfg.Duration = 1.0
	})

	Describe("Prepare", func() {
		It("leaves a predator-prey instance ready with c computed", func() {
			inst, err := sim.Prepare(predatorprey.New(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Phase()).To(Equal(dynamo.Ready))
			Expect([]float64(inst.States)).To(Equal([]float64{2.0, 1.0}))
			Expect(inst.Variables[3]).To(BeNumerically("~", -0.8, 1e-15))
		})

		It("applies constant overrides before computed constants", func() {
			cfg.Constants = map[string]float64{"a": 3.0}
			inst, err := sim.Prepare(predatorprey.New(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Variables[3]).To(BeNumerically("~", 1.0, 1e-15))
		})

		It("rejects overriding a computed constant", func() {
			cfg.Constants = map[string]float64{"c": 1.0}
			_, err := sim.Prepare(predatorprey.New(), cfg)
			Expect(err).To(MatchError(dynamo.ErrNotConstant))
		})
	})

	Describe("Run", func() {
		Context("with the predator-prey model", func() {
			It("records the initial sample exactly", func() {
				s := sim.New(predatorprey.New(), integrators.NewRK4())
				result, err := s.Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Times[0]).To(BeZero())
				Expect([]float64(result.States[0])).To(Equal([]float64{2.0, 1.0}))
				Expect(result.Rates[0][0]).To(BeNumerically("~", 1.2, 1e-12))
				Expect(result.Rates[0][1]).To(BeNumerically("~", -0.8*1.0+0.3*2.0*1.0, 1e-12))
			})

			It("keeps both populations positive", func() {
				cfg.Duration = 20
				s := sim.New(predatorprey.New(), integrators.NewRK4())
				result, err := s.Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Errors).To(BeEmpty())
				for _, st := range result.States {
					Expect(st[0]).To(BeNumerically(">", 0))
					Expect(st[1]).To(BeNumerically(">", 0))
				}
			})

			It("reproduces identical trajectories", func() {
				a, err := sim.New(predatorprey.New(), integrators.NewRK4()).Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				b, err := sim.New(predatorprey.New(), integrators.NewRK4()).Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(a.States).To(Equal(b.States))
				Expect(a.Rates).To(Equal(b.Rates))
			})
		})

		Context("with the gate model", func() {
			It("relaxes towards alpha/(alpha+beta)", func() {
				cfg.Duration = 100
				cfg.OutputEvery = 1000
				s := sim.New(gate.New(), integrators.NewRK4())
				result, err := s.Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Final()[0]).To(BeNumerically("~", 1.0/6.0, 1e-6))
			})

			It("ends adaptive runs exactly at the duration", func() {
				cfg.Adaptive = true
				cfg.Duration = 10
				s := sim.New(gate.New(), integrators.NewRK45())
				result, err := s.Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				last := result.Times[len(result.Times)-1]
				Expect(math.Abs(last - 10)).To(BeNumerically("<", 1e-6))
			})

			It("ends fixed-step runs on the duration when dt does not divide it", func() {
				cfg.Dt = 0.3
				cfg.OutputEvery = 2
				result, err := sim.New(gate.New(), integrators.NewRK4()).Run(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.StepsTaken).To(Equal(4))
				Expect(result.Times).To(HaveLen(3))
				Expect(result.Times[2]).To(Equal(1.0))
			})
		})

		It("returns a partial result when cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			result, err := sim.New(gate.New(), integrators.NewEuler()).Run(cctx, cfg)
			Expect(err).To(MatchError(context.Canceled))
			Expect(result.States).To(HaveLen(1))
		})
	})
})
