package ppo

import (
	"fmt"
)

// Config implements a configuration of the PPO agent. The zero value is
// not usable; all fields must be set and validated with Validate before
// constructing an agent.
type Config struct {
	// Rollout shape. Horizon is the number of timesteps each of the
	// Workers parallel environments contributes per collection, and
	// Features is the per-worker observation size.
	Workers  int
	Horizon  int
	Features int

	// Discount is the reward discount rate γ and Lambda the decay rate
	// of the generalized advantage estimator.
	Discount float64
	Lambda   float64

	// Each collection is fit for Epochs passes, each pass split into
	// NumMinibatch minibatches of Horizon / NumMinibatch timesteps per
	// worker. NumMinibatch must divide Horizon evenly.
	Epochs       int
	NumMinibatch int

	// Probability ratios are clipped to [1 - ε, 1 + ε], with ε
	// interpolated linearly from EpsilonStart to EpsilonEnd over the
	// collections of a training run.
	EpsilonStart float64
	EpsilonEnd   float64

	// EpsilonSchedule, when set, replaces the linear interpolation: it
	// is called once per collection and returns the current ε.
	EpsilonSchedule func() float64

	// Loss coefficients of the critic and entropy bonus terms
	ValueCoef   float64
	EntropyCoef float64

	// PreserveOrder keeps each worker's minibatch indices in time
	// order instead of shuffling them. Required for recurrent
	// networks, whose forward passes consume ordered trajectories.
	PreserveOrder bool

	// Seed seeds minibatch shuffling
	Seed uint64

	// ShowProgress displays a progress bar over collections
	ShowProgress bool

	// Render draws each collection's experience through the agent's
	// renderer, if one was installed with SetRenderer.
	Render bool
}

// Validate returns an error describing the first illegal field of the
// Config, if any.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %v", c.Workers)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %v", c.Horizon)
	}
	if c.Features <= 0 {
		return fmt.Errorf("features must be positive, got %v", c.Features)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("discount must be in [0, 1], got %v", c.Discount)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("lambda must be in [0, 1], got %v", c.Lambda)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %v", c.Epochs)
	}
	if c.NumMinibatch <= 0 {
		return fmt.Errorf("numMinibatch must be positive, got %v",
			c.NumMinibatch)
	}
	if c.Horizon%c.NumMinibatch != 0 {
		return fmt.Errorf("numMinibatch (%v) must evenly divide horizon "+
			"(%v)", c.NumMinibatch, c.Horizon)
	}
	if c.EpsilonSchedule == nil {
		if c.EpsilonStart <= 0 || c.EpsilonStart >= 1 {
			return fmt.Errorf("epsilonStart must be in (0, 1), got %v",
				c.EpsilonStart)
		}
		if c.EpsilonEnd <= 0 || c.EpsilonEnd >= 1 {
			return fmt.Errorf("epsilonEnd must be in (0, 1), got %v",
				c.EpsilonEnd)
		}
	}
	if c.ValueCoef < 0 {
		return fmt.Errorf("valueCoef must be non-negative, got %v",
			c.ValueCoef)
	}
	if c.EntropyCoef < 0 {
		return fmt.Errorf("entropyCoef must be non-negative, got %v",
			c.EntropyCoef)
	}
	return nil
}

// BatchSteps returns the number of timesteps each worker contributes to
// a minibatch.
func (c Config) BatchSteps() int {
	return c.Horizon / c.NumMinibatch
}

// BatchSize returns the total number of samples in a minibatch. The
// network's training surface must be constructed for this batch size.
func (c Config) BatchSize() int {
	return c.Workers * c.BatchSteps()
}
