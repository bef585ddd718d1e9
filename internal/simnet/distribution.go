package simnet

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

var ErrInvalidDistribution = errors.New("invalid latency distribution")

// Distribution draws one latency from r. Implementations hold no state of
// their own; all randomness comes from r.
type Distribution interface {
	Sample(r *rand.Rand) time.Duration
}

// Uniform draws from [Min, Max). Max <= Min always yields Min.
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

func (u Uniform) Sample(r *rand.Rand) time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(r.Int64N(int64(u.Max-u.Min)))
}

func (u Uniform) String() string { return fmt.Sprintf("uniform[%v,%v)", u.Min, u.Max) }

// Fixed always yields the same latency.
type Fixed time.Duration

func (f Fixed) Sample(*rand.Rand) time.Duration { return time.Duration(f) }

func (f Fixed) String() string { return fmt.Sprintf("fixed(%v)", time.Duration(f)) }

// Normal draws from a normal distribution clamped at zero.
type Normal struct {
	Mean   time.Duration
	StdDev time.Duration
}

func (n Normal) Sample(r *rand.Rand) time.Duration {
	d := n.Mean + time.Duration(r.NormFloat64()*float64(n.StdDev))
	if d < 0 {
		return 0
	}
	return d
}

func (n Normal) String() string { return fmt.Sprintf("normal(%v±%v)", n.Mean, n.StdDev) }

// DistributionSpec is the serialized form of a Distribution.
type DistributionSpec struct {
	Kind   string        `yaml:"kind"`
	Min    time.Duration `yaml:"min,omitempty"`
	Max    time.Duration `yaml:"max,omitempty"`
	Value  time.Duration `yaml:"value,omitempty"`
	Mean   time.Duration `yaml:"mean,omitempty"`
	StdDev time.Duration `yaml:"stddev,omitempty"`
}

// Build validates the descriptor and returns the distribution it describes.
func (s DistributionSpec) Build() (Distribution, error) {
	switch strings.ToLower(s.Kind) {
	case "uniform":
		if s.Min < 0 || s.Max <= s.Min {
			return nil, fmt.Errorf("%w: uniform needs 0 <= min < max, got [%v,%v)", ErrInvalidDistribution, s.Min, s.Max)
		}
		return Uniform{Min: s.Min, Max: s.Max}, nil
	case "fixed", "constant":
		if s.Value < 0 {
			return nil, fmt.Errorf("%w: fixed latency must be non-negative, got %v", ErrInvalidDistribution, s.Value)
		}
		return Fixed(s.Value), nil
	case "normal":
		if s.Mean < 0 || s.StdDev < 0 {
			return nil, fmt.Errorf("%w: normal needs non-negative mean and stddev", ErrInvalidDistribution)
		}
		return Normal{Mean: s.Mean, StdDev: s.StdDev}, nil
	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidDistribution)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDistribution, s.Kind)
	}
}
