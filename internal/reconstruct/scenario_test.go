package reconstruct

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/monitoring"
)

var _ = Describe("Reconstructing a proton in a uniform dipole", func() {
	var (
		fix dipole
		rec *Reconstructor
	)

	BeforeEach(func() {
		monitoring.SetLogger(nil)
		var err error
		fix, err = uniformDipole()
		Expect(err).NotTo(HaveOccurred())

		rec, err = New(fix.tracker, DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("recovers the emitted momentum",
		func(method string) {
			s, err := NewStrategy(method, DefaultMethodOptions())
			Expect(err).NotTo(HaveOccurred())

			res, err := rec.Reconstruct(context.Background(), s, fix.track, fix.target)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Method).To(Equal(s.Name()))
			Expect(res.Success).To(BeTrue(), "final distance %.3f mm", res.FinalDistance)
			Expect(res.FinalDistance).To(BeNumerically("<", 5))
			Expect(relativeError(res.MomentumVec(), fix.truth)).To(BeNumerically("<", 0.03))
			Expect(res.Evaluations).To(BeNumerically(">", 0))
		},
		Entry("grid scan", "grid"),
		Entry("gradient descent", "gd"),
		Entry("three-point fit", "threepoint"),
		Entry("simplex minimizer", "minimizer"),
	)

	It("brackets the momentum within ten percent from a wide grid", func() {
		res, err := rec.Reconstruct(context.Background(), NewGrid(DefaultGridOptions()), fix.track, fix.target)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeTrue())
		Expect(math.Abs(res.PMag()-r3.Norm(fix.truth)) / r3.Norm(fix.truth)).To(BeNumerically("<", 0.1))
		Expect(len(res.Trials)).To(BeNumerically(">=", DefaultGridOptions().Samples))
	})

	It("reports forward-going momentum with the energy of a proton", func() {
		res, err := rec.Reconstruct(context.Background(), NewMinimizer(DefaultMinimizerOptions()), fix.track, fix.target)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Momentum.Pz()).To(BeNumerically(">", 0))
		p := res.PMag()
		Expect(res.Momentum.E()).To(BeNumerically("~", math.Sqrt(p*p+938.272*938.272), 1e-6))
	})

	Context("with a degenerate track", func() {
		It("fails every method without producing NaN", func() {
			for _, method := range Methods() {
				s, err := NewStrategy(method, DefaultMethodOptions())
				Expect(err).NotTo(HaveOccurred())

				res, err := rec.Reconstruct(context.Background(), s, Track{Start: fix.track.End, End: fix.track.End}, fix.target)
				Expect(err).To(MatchError(ErrDegenerateTrack))
				Expect(res.Success).To(BeFalse())
				Expect(math.IsInf(res.FinalDistance, 1)).To(BeTrue())
				Expect(math.IsNaN(res.PMag())).To(BeFalse())
			}
		})
	})
})
