package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gorl/ppo/driver"
	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/timestep"
)

// Collector gathers fixed-horizon rollouts from a driver and rearranges
// them into per-worker trajectories.
type Collector struct {
	driver   driver.Driver
	net      network.ActorCritic
	buffer   *Buffer
	workers  int
	horizon  int
	features int
}

// NewCollector returns a Collector gathering rollouts of the given
// horizon from workers parallel environments with features observation
// features each.
func NewCollector(d driver.Driver, net network.ActorCritic, workers,
	horizon, features int) (*Collector, error) {
	if workers <= 0 || features <= 0 {
		return nil, fmt.Errorf("newcollector: illegal rollout shape "+
			"%v workers x %v features", workers, features)
	}

	buffer, err := NewBuffer(horizon)
	if err != nil {
		return nil, fmt.Errorf("newcollector: %v", err)
	}

	return &Collector{
		driver:   d,
		net:      net,
		buffer:   buffer,
		workers:  workers,
		horizon:  horizon,
		features: features,
	}, nil
}

// Collect runs the driver for one horizon starting from the recurrent
// state start and returns the assembled Experience. The bootstrap value
// column is filled with a forward pass on the observations following
// the rollout; the recurrent state of that pass is discarded so the
// next collection continues from the state the rollout ended in.
func (c *Collector) Collect(start policy.State) (*Experience, error) {
	if c.buffer.Len() != 0 {
		return nil, fmt.Errorf("collect: buffer holds %v timesteps from "+
			"an unfinished rollout", c.buffer.Len())
	}

	bootstrap, finalState, err := c.driver.Run(start, c.horizon,
		c.buffer.Append)
	if err != nil {
		return nil, fmt.Errorf("collect: %v", err)
	}

	batches, err := c.buffer.Drain()
	if err != nil {
		return nil, fmt.Errorf("collect: %v", err)
	}

	exp := &Experience{
		Workers:      c.workers,
		Horizon:      c.horizon,
		Features:     c.features,
		Observations: make([]float64, c.workers*c.horizon*c.features),
		Actions:      mat.NewDense(c.workers, c.horizon, nil),
		Rewards:      mat.NewDense(c.workers, c.horizon, nil),
		Dones:        mat.NewDense(c.workers, c.horizon, nil),
		LogProbs:     mat.NewDense(c.workers, c.horizon, nil),
		Values:       mat.NewDense(c.workers, c.horizon+1, nil),
		StartState:   start,
		FinalState:   finalState,
	}

	for t, batch := range batches {
		if batch.NumWorkers() != c.workers {
			return nil, fmt.Errorf("collect: timestep %v has %v workers, "+
				"want %v", t, batch.NumWorkers(), c.workers)
		}

		for w := 0; w < c.workers; w++ {
			row := w*c.horizon + t
			copy(exp.Observations[row*c.features:(row+1)*c.features],
				batch.WorkerObs(w))

			exp.Actions.Set(w, t, batch.Actions[w])
			exp.Rewards.Set(w, t, batch.Rewards[w])
			exp.LogProbs.Set(w, t, batch.LogProbs[w])
			exp.Values.Set(w, t, batch.Values[w])
		}
	}

	// A worker's episode ended during step t exactly when the step
	// after t starts a fresh episode.
	c.shiftDones(exp, batches, bootstrap)

	// Bootstrap values of the observations following the rollout
	bootObs := flatten(bootstrap.Observations)
	pred, err := c.net.Predict(bootObs, bootstrap.Dones(), finalState, false)
	if err != nil {
		return nil, fmt.Errorf("collect: could not bootstrap values: %v",
			err)
	}
	for w := 0; w < c.workers; w++ {
		exp.Values.Set(w, c.horizon, pred.Values[w])
	}

	return exp, nil
}

func (c *Collector) shiftDones(exp *Experience, batches []timestep.Batch,
	bootstrap timestep.Batch) {
	for w := 0; w < c.workers; w++ {
		for t := 0; t < c.horizon-1; t++ {
			if batches[t+1].Last(w) {
				exp.Dones.Set(w, t, 1.0)
			}
		}
		if bootstrap.Last(w) {
			exp.Dones.Set(w, c.horizon-1, 1.0)
		}
	}
}

func flatten(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, m.RawRowView(r)...)
	}
	return out
}
