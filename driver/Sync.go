package driver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gorl/ppo/environment"
	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/timestep"
)

// Sync drives a vectorized set of environments synchronously: every
// worker takes exactly one step per iteration, all from a single
// batched forward pass of the network.
type Sync struct {
	envs *environment.Vector
	net  network.ActorCritic

	obs     []float64
	types   []timestep.StepType
	step    int
	started bool
}

// NewSync returns a new Sync driver over the argued environments and
// network. The environments are not reset until the first Run call.
func NewSync(envs *environment.Vector, net network.ActorCritic) *Sync {
	return &Sync{envs: envs, net: net}
}

// Run implements the Driver interface
func (d *Sync) Run(start policy.State, iterations int,
	observe func(timestep.Batch) error) (timestep.Batch, policy.State,
	error) {
	if iterations <= 0 {
		return timestep.Batch{}, nil, fmt.Errorf("run: iterations must be "+
			"positive, got %v", iterations)
	}

	workers := d.envs.Workers()
	if !d.started {
		obs, err := d.envs.Reset()
		if err != nil {
			return timestep.Batch{}, nil, fmt.Errorf("run: could not reset "+
				"environments: %v", err)
		}
		d.obs = obs
		d.types = make([]timestep.StepType, workers)
		for w := range d.types {
			d.types[w] = timestep.First
		}
		d.started = true
	}

	state := start
	for i := 0; i < iterations; i++ {
		cur := timestep.New(d.types, d.obsMatrix(), d.step)

		pred, err := d.net.Predict(d.obs, cur.Dones(), state, false)
		if err != nil {
			return timestep.Batch{}, nil, fmt.Errorf("run: could not "+
				"predict actions: %v", err)
		}
		state = pred.State

		actions := make([]int, workers)
		for w, a := range pred.Actions {
			actions[w] = int(a)
		}
		nextObs, rewards, dones, err := d.envs.Step(actions)
		if err != nil {
			return timestep.Batch{}, nil, fmt.Errorf("run: could not step "+
				"environments: %v", err)
		}

		cur.Actions = pred.Actions
		cur.Rewards = rewards
		cur.LogProbs = pred.LogProbs
		cur.Values = pred.Values
		if err := observe(cur); err != nil {
			return timestep.Batch{}, nil, fmt.Errorf("run: %v", err)
		}

		d.obs = nextObs
		nextTypes := make([]timestep.StepType, workers)
		for w := range nextTypes {
			if dones[w] {
				nextTypes[w] = timestep.Last
			} else {
				nextTypes[w] = timestep.Mid
			}
		}
		d.types = nextTypes
		d.step++
	}

	bootstrap := timestep.New(d.types, d.obsMatrix(), d.step)
	return bootstrap, state, nil
}

// obsMatrix snapshots the current observations as a worker-per-row
// matrix backed by its own data.
func (d *Sync) obsMatrix() *mat.Dense {
	data := make([]float64, len(d.obs))
	copy(data, d.obs)
	return mat.NewDense(d.envs.Workers(), d.envs.ObservationSize(), data)
}

var _ Driver = (*Sync)(nil)
