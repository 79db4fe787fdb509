package automation

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/swerve/internal/swerve"
)

// Segment holds one body twist for Duration seconds.
type Segment struct {
	Duration float64 `yaml:"duration"`
	Vx       float64 `yaml:"vx"`
	Vy       float64 `yaml:"vy"`
	Omega    float64 `yaml:"omega"`
	// Ramp interpolates linearly from the previous segment's twist
	// (zero for the first segment) instead of stepping.
	Ramp bool `yaml:"ramp"`
}

// Twist returns the twist held at the end of the segment.
func (s Segment) Twist() swerve.Twist {
	return swerve.Twist{Vx: s.Vx, Vy: s.Vy, Omega: s.Omega}
}

// Profile is a scripted twist command: timed segments played back to back.
type Profile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Segments    []Segment `yaml:"segments"`
}

// LoadProfile loads a profile from a YAML file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read profile")
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "parse profile %s", path)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate reports every malformed segment.
func (p *Profile) Validate() error {
	var errs error
	for i, s := range p.Segments {
		if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
			errs = multierr.Append(errs, errors.Errorf("segment %d: duration must be positive, got %g", i, s.Duration))
		}
		for _, v := range []float64{s.Vx, s.Vy, s.Omega} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				errs = multierr.Append(errs, errors.Errorf("segment %d: twist is not finite", i))
				break
			}
		}
	}
	return errs
}

// Duration is the total length of the profile in seconds.
func (p *Profile) Duration() float64 {
	total := 0.0
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

// At returns the twist commanded t seconds into the profile. Outside the
// profile the command is zero.
func (p *Profile) At(t float64) swerve.Twist {
	if p == nil || t < 0 {
		return swerve.Twist{}
	}

	var prev swerve.Twist
	start := 0.0
	for _, s := range p.Segments {
		end := start + s.Duration
		if t < end {
			tw := s.Twist()
			if !s.Ramp {
				return tw
			}
			k := (t - start) / s.Duration
			return swerve.Twist{
				Vx:    prev.Vx + k*(tw.Vx-prev.Vx),
				Vy:    prev.Vy + k*(tw.Vy-prev.Vy),
				Omega: prev.Omega + k*(tw.Omega-prev.Omega),
			}
		}
		prev = s.Twist()
		start = end
	}
	return swerve.Twist{}
}
