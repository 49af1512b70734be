package environment

import (
	"fmt"
)

// Vector steps a fixed set of environment copies in lockstep. All
// copies must agree on observation and action spaces. Episodes reset
// automatically: when a copy's episode ends, Step returns the first
// observation of that copy's next episode together with done = true, so
// the observation a caller records after a termination already belongs
// to the new episode.
type Vector struct {
	envs     []Environment
	features int
	actions  int
}

// NewVector returns a Vector over workers environment copies, each
// constructed by makeEnv with its worker index.
func NewVector(workers int, makeEnv func(worker int) (Environment,
	error)) (*Vector, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("newvector: need at least one worker, "+
			"got %v", workers)
	}

	envs := make([]Environment, workers)
	for w := range envs {
		env, err := makeEnv(w)
		if err != nil {
			return nil, fmt.Errorf("newvector: could not create "+
				"environment %v: %v", w, err)
		}
		envs[w] = env
	}

	features := envs[0].ObservationSize()
	actions := envs[0].NumActions()
	for w, env := range envs {
		if env.ObservationSize() != features || env.NumActions() != actions {
			return nil, fmt.Errorf("newvector: environment %v disagrees "+
				"on spaces: [%v %v] != [%v %v]", w, env.ObservationSize(),
				env.NumActions(), features, actions)
		}
	}

	return &Vector{envs: envs, features: features, actions: actions}, nil
}

// Reset starts a new episode in every copy and returns the stacked
// first observations in worker order.
func (v *Vector) Reset() ([]float64, error) {
	obs := make([]float64, 0, len(v.envs)*v.features)
	for w, env := range v.envs {
		o, err := env.Reset()
		if err != nil {
			return nil, fmt.Errorf("reset: worker %v: %v", w, err)
		}
		obs = append(obs, o...)
	}
	return obs, nil
}

// Step takes one action per copy. Returned slices are in worker order.
// Copies whose episodes ended are reset before returning, and their
// observation slots hold the reset observations.
func (v *Vector) Step(actions []int) (obs []float64, rewards []float64,
	dones []bool, err error) {
	if len(actions) != len(v.envs) {
		return nil, nil, nil, fmt.Errorf("step: illegal number of actions "+
			"\n\twant(%v)\n\thave(%v)", len(v.envs), len(actions))
	}

	obs = make([]float64, 0, len(v.envs)*v.features)
	rewards = make([]float64, len(v.envs))
	dones = make([]bool, len(v.envs))
	for w, env := range v.envs {
		o, r, done, err := env.Step(actions[w])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("step: worker %v: %v", w, err)
		}
		if done {
			o, err = env.Reset()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("step: could not reset "+
					"worker %v: %v", w, err)
			}
		}
		obs = append(obs, o...)
		rewards[w] = r
		dones[w] = done
	}
	return obs, rewards, dones, nil
}

// Workers returns the number of environment copies.
func (v *Vector) Workers() int { return len(v.envs) }

// ObservationSize returns the per-copy observation feature count.
func (v *Vector) ObservationSize() int { return v.features }

// NumActions returns the number of available discrete actions.
func (v *Vector) NumActions() int { return v.actions }
