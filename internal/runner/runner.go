// Package runner drives a swerve controller in real time.
package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/swerve"
)

// Driver is the part of swerve.Controller the runner calls.
type Driver interface {
	Update(tw swerve.Twist, period time.Duration)
	Halt()
}

// TwistSource yields the command for the next tick. It is called from the
// runner goroutine only.
type TwistSource interface {
	Twist() swerve.Twist
}

type TwistFunc func() swerve.Twist

func (f TwistFunc) Twist() swerve.Twist { return f() }

// Constant is a TwistSource that always returns the same twist.
type Constant swerve.Twist

func (c Constant) Twist() swerve.Twist { return swerve.Twist(c) }

const DefaultWarnInterval = time.Second

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAfterTick registers a hook run after every Update and after the final
// Halt, typically flushing commands to hardware. Hook errors are logged and
// counted, never fatal.
func WithAfterTick(f func() error) Option {
	return func(r *Runner) { r.after = f }
}

// WithWarnInterval sets the minimum spacing between overrun warnings.
func WithWarnInterval(d time.Duration) Option {
	return func(r *Runner) { r.warnEvery = d }
}

type Stats struct {
	Ticks      uint64
	Overruns   uint64
	HookErrors uint64
	MaxPeriod  time.Duration
}

type Runner struct {
	driver    Driver
	source    TwistSource
	period    time.Duration
	after     func() error
	logger    *zap.Logger
	warnEvery time.Duration

	ticks      atomic.Uint64
	overruns   atomic.Uint64
	hookErrors atomic.Uint64
	maxPeriod  atomic.Int64
}

func New(d Driver, src TwistSource, rate float64, opts ...Option) (*Runner, error) {
	if d == nil || src == nil {
		return nil, errors.New("runner: driver and twist source are required")
	}
	if !(rate > 0) {
		return nil, errors.Errorf("runner: rate must be positive, got %v", rate)
	}
	r := &Runner{
		driver:    d,
		source:    src,
		period:    time.Duration(float64(time.Second) / rate),
		logger:    zap.NewNop(),
		warnEvery: DefaultWarnInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.period <= 0 {
		return nil, errors.Errorf("runner: rate %v is too high", rate)
	}
	return r, nil
}

func (r *Runner) Period() time.Duration { return r.period }

// Run ticks until ctx is done, then halts the driver and returns ctx.Err().
// The period handed to Update is the measured time since the previous tick;
// the first tick uses the nominal period.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	defer func() {
		r.driver.Halt()
		r.afterTick()
		r.logger.Info("runner stopped", zap.Uint64("ticks", r.ticks.Load()), zap.Uint64("overruns", r.overruns.Load()))
	}()

	r.logger.Info("runner started", zap.Duration("period", r.period))

	var last time.Time
	var lastWarn time.Time
	var missed uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			period := r.period
			if !last.IsZero() {
				period = now.Sub(last)
			}
			last = now

			r.driver.Update(r.source.Twist(), period)
			r.afterTick()
			r.ticks.Add(1)
			if int64(period) > r.maxPeriod.Load() {
				r.maxPeriod.Store(int64(period))
			}

			// A tick that took more than half a period extra means the
			// ticker dropped at least one tick.
			if period > r.period+r.period/2 {
				r.overruns.Add(1)
				missed++
				if time.Since(lastWarn) >= r.warnEvery {
					r.logger.Warn("control loop overrun",
						zap.Duration("period", period),
						zap.Duration("nominal", r.period),
						zap.Uint64("since_last_warning", missed))
					lastWarn = time.Now()
					missed = 0
				}
			}
		}
	}
}

func (r *Runner) afterTick() {
	if r.after == nil {
		return
	}
	if err := r.after(); err != nil {
		if r.hookErrors.Add(1) == 1 {
			r.logger.Warn("after-tick hook failed", zap.Error(err))
		} else {
			r.logger.Debug("after-tick hook failed", zap.Error(err))
		}
	}
}

// Stats may be called from any goroutine.
func (r *Runner) Stats() Stats {
	return Stats{
		Ticks:      r.ticks.Load(),
		Overruns:   r.overruns.Load(),
		HookErrors: r.hookErrors.Load(),
		MaxPeriod:  time.Duration(r.maxPeriod.Load()),
	}
}
