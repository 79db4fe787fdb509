package swerve_test

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/swerve/internal/swerve"
)

var _ = Describe("ShortestAngularDistance", func() {
	DescribeTable("wraps into (-π, π]",
		func(from, to, expected float64) {
			Expect(swerve.ShortestAngularDistance(from, to)).To(BeNumerically("~", expected, 1e-12))
		},
		Entry("no rotation", 0.0, 0.0, 0.0),
		Entry("quarter turn", 0.0, math.Pi/2, math.Pi/2),
		Entry("negative quarter turn", math.Pi/2, 0.0, -math.Pi/2),
		Entry("across the seam", 3.0, -3.0, 2*math.Pi-6.0),
		Entry("many turns", 10*math.Pi+0.1, 0.0, -0.1),
		Entry("half turn is positive", 0.0, -math.Pi, math.Pi),
	)
})

var _ = Describe("Geometry", func() {
	geom := swerve.Geometry{Position: r2.Point{X: 0.3, Y: 0.3}, WheelRadius: 0.05}

	Describe("GroundVelocity", func() {
		It("adds the rotational component perpendicular to the position", func() {
			v := geom.GroundVelocity(swerve.Twist{Vx: 0.5, Vy: -0.2, Omega: 2})
			Expect(v.X).To(BeNumerically("~", 0.5-2*0.3, 1e-12))
			Expect(v.Y).To(BeNumerically("~", -0.2+2*0.3, 1e-12))
		})
	})

	Describe("Solve", func() {
		It("drives straight ahead without steering", func() {
			t := geom.Solve(swerve.Twist{Vx: 1}, 0, 0, swerve.DefaultDeadband)
			Expect(t.PivotError).To(BeNumerically("~", 0, 1e-12))
			Expect(t.WheelSpeed).To(BeNumerically("~", 20, 1e-9))
			Expect(t.Flipped).To(BeFalse())
			Expect(t.Held).To(BeFalse())
		})

		It("reverses the wheel instead of turning around", func() {
			t := geom.Solve(swerve.Twist{Vx: -1}, 0, 0, swerve.DefaultDeadband)
			Expect(t.Flipped).To(BeTrue())
			Expect(t.PivotError).To(BeNumerically("~", 0, 1e-12))
			Expect(t.WheelSpeed).To(BeNumerically("~", -20, 1e-9))
			Expect(t.Angle).To(BeNumerically("~", 0, 1e-12))
		})

		It("points tangentially when spinning in place", func() {
			t := geom.Solve(swerve.Twist{Omega: 1}, 3*math.Pi/4, 0, swerve.DefaultDeadband)
			Expect(t.PivotError).To(BeNumerically("~", 0, 1e-12))
			Expect(t.WheelSpeed * geom.WheelRadius).To(BeNumerically("~", math.Hypot(0.3, 0.3), 1e-12))
		})

		It("adds the pivot offset to the heading", func() {
			skewed := geom
			skewed.PivotOffset = 0.1
			t := skewed.Solve(swerve.Twist{Vx: 1}, 0, 0, swerve.DefaultDeadband)
			Expect(t.PivotError).To(BeNumerically("~", 0.1, 1e-12))
			Expect(t.WheelSpeed).To(BeNumerically("~", 20*math.Cos(0.1), 1e-9))
		})

		It("follows the measured angle across full turns", func() {
			current := 4*math.Pi + 0.2
			t := geom.Solve(swerve.Twist{Vx: 1}, current, 0, swerve.DefaultDeadband)
			Expect(t.PivotError).To(BeNumerically("~", -0.2, 1e-9))
			Expect(t.Angle).To(BeNumerically("~", 4*math.Pi, 1e-9))
		})

		It("keeps the direct heading on an exact tie", func() {
			tw := swerve.Twist{Vy: 1}
			direct := swerve.ShortestAngularDistance(0, math.Pi/2)
			reverse := swerve.ShortestAngularDistance(0, math.Pi/2+math.Pi)

			t := geom.Solve(tw, 0, 0, swerve.DefaultDeadband)
			if math.Abs(reverse) < math.Abs(direct) {
				Expect(t.Flipped).To(BeTrue())
				Expect(t.PivotError).To(Equal(reverse))
			} else {
				Expect(t.Flipped).To(BeFalse())
				Expect(t.PivotError).To(Equal(direct))
			}
			Expect(geom.Solve(tw, 0, 0, swerve.DefaultDeadband)).To(Equal(t))
		})

		Context("when the ground speed is negligible", func() {
			It("holds the previous heading and stops the wheel", func() {
				t := geom.Solve(swerve.Twist{}, 0.4, 1.2, swerve.DefaultDeadband)
				Expect(t.Held).To(BeTrue())
				Expect(t.Angle).To(Equal(1.2))
				Expect(t.PivotError).To(BeNumerically("~", 0.8, 1e-12))
				Expect(t.WheelSpeed).To(Equal(0.0))
			})

			It("treats speeds inside the deadband as zero", func() {
				t := geom.Solve(swerve.Twist{Vx: 1e-6}, 0.4, 0.4, 1e-3)
				Expect(t.Held).To(BeTrue())
				Expect(t.WheelSpeed).To(Equal(0.0))
			})

			It("holds on a non-finite command", func() {
				t := geom.Solve(swerve.Twist{Vx: math.Inf(1)}, 0.4, 0.4, swerve.DefaultDeadband)
				Expect(t.Held).To(BeTrue())
				t = geom.Solve(swerve.Twist{Vy: math.NaN()}, 0.4, 0.4, swerve.DefaultDeadband)
				Expect(t.Held).To(BeTrue())
				Expect(math.IsNaN(t.PivotError)).To(BeFalse())
			})
		})

		It("never picks a longer rotation than the direct one", func() {
			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 5000; i++ {
				g := swerve.Geometry{
					Position:    r2.Point{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5},
					WheelRadius: 0.02 + rng.Float64()*0.1,
					PivotOffset: rng.NormFloat64() * 0.1,
				}
				tw := swerve.Twist{Vx: rng.NormFloat64(), Vy: rng.NormFloat64(), Omega: rng.NormFloat64()}
				current := rng.NormFloat64() * 10

				v := g.GroundVelocity(tw)
				heading := math.Atan2(v.Y, v.X) + g.PivotOffset
				direct := swerve.ShortestAngularDistance(current, heading)

				t := g.Solve(tw, current, current, swerve.DefaultDeadband)
				Expect(math.Abs(t.PivotError)).To(BeNumerically("<=", math.Abs(direct)))
				Expect(math.Abs(t.PivotError)).To(BeNumerically("<=", math.Pi/2+1e-9))
				Expect(t.WheelSpeed * g.WheelRadius).To(BeNumerically("~", v.Norm()*math.Cos(direct), 1e-9))
			}
		})

		It("requests the full ground speed once aligned", func() {
			rng := rand.New(rand.NewSource(11))
			for i := 0; i < 1000; i++ {
				tw := swerve.Twist{Vx: rng.NormFloat64(), Vy: rng.NormFloat64(), Omega: rng.NormFloat64()}
				v := geom.GroundVelocity(tw)
				if v.Norm() < 1e-3 {
					continue
				}
				aligned := math.Atan2(v.Y, v.X)
				t := geom.Solve(tw, aligned, aligned, swerve.DefaultDeadband)
				Expect(t.Flipped).To(BeFalse())
				Expect(t.WheelSpeed * geom.WheelRadius).To(BeNumerically("~", v.Norm(), 1e-9))
			}
		})
	})
})
