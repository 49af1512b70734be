// Package driver implements the interaction loop between an
// actor-critic network and a vectorized set of environments.
package driver

import (
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/timestep"
)

// Driver steps a policy through parallel environments. Run performs
// iterations lockstep environment steps starting from the recurrent
// state start, handing each recorded timestep to observe in order.
// After the final step it returns a bootstrap timestep holding the
// observations the policy would act on next, with no action taken, and
// the recurrent state that produced it.
//
// The driver owns the environment cursor: successive Run calls continue
// from wherever the previous call left off, so a collection boundary
// never forces an episode boundary.
type Driver interface {
	Run(start policy.State, iterations int,
		observe func(timestep.Batch) error) (timestep.Batch, policy.State,
		error)
}
