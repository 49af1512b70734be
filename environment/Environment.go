// Package environment outlines the interfaces needed to implement
// concrete environments with discrete action spaces.
package environment

// Environment implements a simulated environment with a discrete
// action space. Environments are single-instance; Vector runs many of
// them in lockstep for batched experience collection.
type Environment interface {
	// Reset starts a new episode, returning its first observation
	Reset() ([]float64, error)

	// Step takes one action in the environment, returning the next
	// observation, the reward for the transition, and whether the
	// episode ended with the transition. A Step on an ended episode
	// is an error until Reset is called.
	Step(action int) (obs []float64, reward float64, done bool, err error)

	// ObservationSize returns the number of observation features
	ObservationSize() int

	// NumActions returns the number of available discrete actions
	NumActions() int
}
