package swerve_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/swerve/internal/control"
	"github.com/san-kum/swerve/internal/swerve"
)

type fakeActuator struct {
	pos, vel float64
	cmd      float64
	writes   int
}

func (f *fakeActuator) Position() float64    { return f.pos }
func (f *fakeActuator) Velocity() float64    { return f.vel }
func (f *fakeActuator) SetCommand(e float64) { f.cmd = e; f.writes++ }

type rig struct {
	pivots, wheels []*fakeActuator
	cfgs           []swerve.ModuleConfig
}

func newRig() *rig {
	r := &rig{}
	corners := []struct {
		name string
		x, y float64
	}{
		{"front_left", 0.3, 0.3},
		{"front_right", 0.3, -0.3},
		{"rear_left", -0.3, 0.3},
		{"rear_right", -0.3, -0.3},
	}
	for _, c := range corners {
		p, w := &fakeActuator{}, &fakeActuator{}
		r.pivots = append(r.pivots, p)
		r.wheels = append(r.wheels, w)
		r.cfgs = append(r.cfgs, swerve.ModuleConfig{
			Name:        c.name,
			Position:    r2.Point{X: c.x, Y: c.y},
			WheelRadius: 0.05,
			PivotGains:  control.Gains{P: 10},
			WheelGains:  control.Gains{P: 0.5, I: 2},
			Pivot:       p,
			Wheel:       w,
		})
	}
	return r
}

func (r *rig) controller(l swerve.EffortLimiter, opts ...swerve.Option) *swerve.Controller {
	c, err := swerve.New(r.cfgs, l, opts...)
	Expect(err).NotTo(HaveOccurred())
	return c
}

const tick = 2 * time.Millisecond

var _ = Describe("Controller", func() {
	Describe("New", func() {
		It("rejects an empty chassis", func() {
			_, err := swerve.New(nil, nil)
			Expect(errors.Is(err, swerve.ErrNoModules)).To(BeTrue())
		})

		It("reports every invalid module", func() {
			r := newRig()
			r.cfgs[0].WheelRadius = 0
			r.cfgs[1].Pivot = nil
			r.cfgs[2].PivotGains.P = math.NaN()
			r.cfgs[3].Name = r.cfgs[0].Name

			_, err := swerve.New(r.cfgs, nil)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, swerve.ErrInvalidConfig)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("wheel radius"))
			Expect(err.Error()).To(ContainSubstring("pivot actuator"))
			Expect(err.Error()).To(ContainSubstring("pivot pid"))
			Expect(err.Error()).To(ContainSubstring("duplicate"))
		})

		It("keeps configuration order", func() {
			c := newRig().controller(nil)
			Expect(c.Names()).To(Equal([]string{"front_left", "front_right", "rear_left", "rear_right"}))
			Expect(c.Len()).To(Equal(4))
		})
	})

	Describe("Update", func() {
		It("drives every module forward for a straight command", func() {
			r := newRig()
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1}, tick)

			for i := range r.cfgs {
				st := c.Status(i)
				Expect(st.PivotError).To(BeNumerically("~", 0, 1e-12))
				Expect(st.WheelSpeed).To(BeNumerically("~", 20, 1e-9))
				Expect(r.pivots[i].cmd).To(BeNumerically("~", 0, 1e-12))
				Expect(r.wheels[i].cmd).To(BeNumerically(">", 0))
				Expect(r.wheels[i].writes).To(Equal(1))
			}
		})

		It("flips modules for a reverse command", func() {
			r := newRig()
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: -1}, tick)

			for i := range r.cfgs {
				st := c.Status(i)
				Expect(st.Flipped).To(BeTrue())
				Expect(st.WheelSpeed).To(BeNumerically("~", -20, 1e-9))
				Expect(r.wheels[i].cmd).To(BeNumerically("<", 0))
			}
		})

		It("uses the wheel rate error for the wheel loop", func() {
			r := newRig()
			r.wheels[0].vel = 5
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1}, tick)
			Expect(c.Status(0).WheelError).To(BeNumerically("~", 15, 1e-9))
		})

		It("holds the heading when commanded to stop", func() {
			r := newRig()
			for _, p := range r.pivots {
				p.pos = 0.3
			}
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1, Vy: 1}, tick)
			before := make([]float64, c.Len())
			for i := range before {
				before[i] = c.Status(i).Target.Angle
			}

			for _, p := range r.pivots {
				p.pos = 0.5
			}
			for n := 0; n < 10; n++ {
				c.Update(swerve.Twist{}, tick)
				for i := range before {
					st := c.Status(i)
					Expect(st.Held).To(BeTrue())
					Expect(st.Target.Angle).To(Equal(before[i]))
					Expect(st.WheelSpeed).To(Equal(0.0))
				}
			}
		})

		It("holds the measured heading when never commanded", func() {
			r := newRig()
			r.pivots[2].pos = -1.1
			c := r.controller(nil)
			c.Update(swerve.Twist{}, tick)
			Expect(c.Status(2).Target.Angle).To(Equal(-1.1))
			Expect(c.Status(2).PivotError).To(Equal(0.0))
			Expect(r.pivots[2].cmd).To(Equal(0.0))
		})

		DescribeTable("scales wheel efforts and leaves pivots alone",
			func(s float64) {
				ref, scaled := newRig(), newRig()
				for _, rr := range []*rig{ref, scaled} {
					for i := range rr.pivots {
						rr.pivots[i].pos = 0.25 * float64(i)
						rr.wheels[i].vel = float64(i)
					}
				}
				a := ref.controller(swerve.FixedLimiter{Value: 1})
				b := scaled.controller(swerve.FixedLimiter{Value: s})

				tw := swerve.Twist{Vx: 0.7, Vy: -0.4, Omega: 1.3}
				a.Update(tw, tick)
				b.Update(tw, tick)

				Expect(b.Scale()).To(Equal(s))
				for i := range ref.wheels {
					Expect(scaled.wheels[i].cmd).To(Equal(s * ref.wheels[i].cmd))
					Expect(scaled.pivots[i].cmd).To(Equal(ref.pivots[i].cmd))
					Expect(b.Status(i).WheelEffort).To(Equal(a.Status(i).WheelEffort))
				}
			},
			Entry("no drive", 0.0),
			Entry("quarter", 0.25),
			Entry("half", 0.5),
			Entry("full", 1.0),
		)

		DescribeTable("sanitizes the limiter output",
			func(raw, expected float64) {
				r := newRig()
				c := r.controller(swerve.LimiterFunc(func([]float64) float64 { return raw }))
				c.Update(swerve.Twist{Vx: 1}, tick)
				Expect(c.Scale()).To(Equal(expected))
				Expect(math.IsNaN(r.wheels[0].cmd)).To(BeFalse())
			},
			Entry("nan", math.NaN(), 0.0),
			Entry("negative", -3.0, 0.0),
			Entry("above one", 7.0, 1.0),
			Entry("inside", 0.4, 0.4),
		)

		It("passes the pre-limit wheel efforts to the limiter", func() {
			r := newRig()
			var seen []float64
			c := r.controller(swerve.LimiterFunc(func(e []float64) float64 {
				seen = append(seen[:0], e...)
				return 1
			}))
			c.Update(swerve.Twist{Vx: 1}, tick)
			Expect(seen).To(HaveLen(4))
			for i := range seen {
				Expect(seen[i]).To(Equal(c.Status(i).WheelEffort))
			}
		})

		It("survives garbage and stale readings", func() {
			r := newRig()
			c := r.controller(swerve.BudgetLimiter{Budget: 1})
			for n := 0; n < 50; n++ {
				if n%3 == 0 {
					r.pivots[0].pos = math.NaN()
					r.wheels[1].vel = math.Inf(1)
				} else {
					r.pivots[0].pos = 0.1
					r.wheels[1].vel = 2
				}
				c.Update(swerve.Twist{Vx: 0.3, Omega: 0.2}, tick)
				for i := range r.cfgs {
					Expect(math.IsNaN(r.pivots[i].cmd) || math.IsInf(r.pivots[i].cmd, 0)).To(BeFalse())
					Expect(math.IsNaN(r.wheels[i].cmd) || math.IsInf(r.wheels[i].cmd, 0)).To(BeFalse())
				}
			}
		})

		It("tolerates a zero or negative period", func() {
			r := newRig()
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1}, tick)
			c.Update(swerve.Twist{Vx: 1}, 0)
			c.Update(swerve.Twist{Vx: 1}, -tick)
			for i := range r.cfgs {
				Expect(math.IsNaN(r.wheels[i].cmd)).To(BeFalse())
				Expect(r.wheels[i].cmd).To(BeNumerically("~", 0.5*20, 1e-9))
			}
		})

		It("converges for a held command", func() {
			r := newRig()
			c := r.controller(nil)
			dt := tick.Seconds()
			tw := swerve.Twist{Vx: 0.4, Vy: 0.3, Omega: 0.5}

			for n := 0; n < 5000; n++ {
				c.Update(tw, tick)
				for i := range r.cfgs {
					r.pivots[i].pos += dt * r.pivots[i].cmd
					r.wheels[i].vel += dt * (20*r.wheels[i].cmd - 0.5*r.wheels[i].vel)
				}
			}
			for i := range r.cfgs {
				st := c.Status(i)
				Expect(math.Abs(st.PivotError)).To(BeNumerically("<", 1e-6))
				Expect(math.Abs(st.WheelError)).To(BeNumerically("<", 1e-3))
			}
		})

		It("does not allocate", func() {
			c := newRig().controller(swerve.BudgetLimiter{Budget: 1})
			tw := swerve.Twist{Vx: 1, Omega: 0.5}
			allocs := testing.AllocsPerRun(100, func() { c.Update(tw, tick) })
			Expect(allocs).To(BeZero())
		})
	})

	Describe("Reset", func() {
		It("forgets held headings and loop state", func() {
			r := newRig()
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1, Vy: 1}, tick)
			Expect(c.Module(0).WheelPID().Integral()).NotTo(BeZero())

			c.Reset()
			Expect(c.Module(0).WheelPID().Integral()).To(BeZero())
			Expect(c.Status(0)).To(Equal(swerve.Status{}))

			r.pivots[0].pos = 2
			c.Update(swerve.Twist{}, tick)
			Expect(c.Status(0).Target.Angle).To(Equal(2.0))
		})
	})

	Describe("Halt", func() {
		It("zeroes every command", func() {
			r := newRig()
			c := r.controller(nil)
			c.Update(swerve.Twist{Vx: 1, Omega: 1}, tick)
			c.Halt()
			for i := range r.cfgs {
				Expect(r.pivots[i].cmd).To(BeZero())
				Expect(r.wheels[i].cmd).To(BeZero())
			}
		})
	})

	Describe("Statuses", func() {
		It("reuses the destination slice", func() {
			c := newRig().controller(nil)
			c.Update(swerve.Twist{Vx: 1}, tick)
			buf := make([]swerve.Status, 0, 8)
			out := c.Statuses(buf)
			Expect(out).To(HaveLen(4))
			Expect(&out[0]).To(BeIdenticalTo(&buf[:1][0]))
		})
	})
})

var _ = Describe("Limiters", func() {
	It("budget scales the summed magnitude down to the budget", func() {
		l := swerve.BudgetLimiter{Budget: 10}
		Expect(l.Scale([]float64{3, -3, 2})).To(Equal(1.0))
		Expect(l.Scale([]float64{10, -10})).To(Equal(0.5))
		Expect(swerve.BudgetLimiter{}.Scale([]float64{1e9})).To(Equal(1.0))
	})

	It("fixed clamps into range", func() {
		Expect(swerve.FixedLimiter{Value: 2}.Scale(nil)).To(Equal(1.0))
		Expect(swerve.FixedLimiter{Value: 0.3}.Scale(nil)).To(Equal(0.3))
		Expect(swerve.FixedLimiter{Value: -1}.Scale(nil)).To(Equal(0.0))
	})
})
