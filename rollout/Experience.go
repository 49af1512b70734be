package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gorl/ppo/policy"
)

// Experience is a complete fixed-horizon rollout rearranged from
// per-timestep batches into per-worker trajectories, the layout the
// advantage estimator and minibatch partitioner consume.
//
// Actions, Rewards, Dones, and LogProbs are workers × horizon matrices
// with row w holding worker w's trajectory in time order. Values has
// one extra column: Values[w][horizon] is the bootstrap value estimate
// of the observation following the rollout. Dones[w][t] is 1 exactly
// when the episode ended during step t, so a terminal transition masks
// its own bootstrap rather than the step after it.
//
// Observations is flat and worker-major: worker w's trajectory occupies
// rows w·horizon through (w+1)·horizon − 1 of the implied
// [workers·horizon, features] matrix.
type Experience struct {
	Workers  int
	Horizon  int
	Features int

	Observations []float64
	Actions      *mat.Dense
	Rewards      *mat.Dense
	Dones        *mat.Dense
	LogProbs     *mat.Dense
	Values       *mat.Dense

	// Recurrent states at the first and one-past-last timesteps of the
	// rollout. Both are nil for stateless networks.
	StartState policy.State
	FinalState policy.State
}

// WorkerObs returns the observation of worker w at timestep t.
func (e *Experience) WorkerObs(w, t int) []float64 {
	row := w*e.Horizon + t
	return e.Observations[row*e.Features : (row+1)*e.Features]
}

// GatherObs flattens the observations selected by per-worker time
// indices into a row-major batch: worker 0's selected rows first, then
// worker 1's, and so on.
func (e *Experience) GatherObs(ids [][]int) ([]float64, error) {
	if len(ids) != e.Workers {
		return nil, fmt.Errorf("gatherobs: illegal number of index rows "+
			"\n\twant(%v)\n\thave(%v)", e.Workers, len(ids))
	}

	out := make([]float64, 0, len(ids)*len(ids[0])*e.Features)
	for w := range ids {
		for _, t := range ids[w] {
			out = append(out, e.WorkerObs(w, t)...)
		}
	}
	return out, nil
}

// Gather flattens the elements of a workers × horizon matrix selected
// by per-worker time indices, in the same worker-major order as
// GatherObs.
func Gather(m *mat.Dense, ids [][]int) []float64 {
	rows, _ := m.Dims()
	if rows != len(ids) {
		panic(fmt.Sprintf("gather: illegal number of index rows "+
			"\n\twant(%v)\n\thave(%v)", rows, len(ids)))
	}

	out := make([]float64, 0, len(ids)*len(ids[0]))
	for w := range ids {
		row := m.RawRowView(w)
		for _, t := range ids[w] {
			out = append(out, row[t])
		}
	}
	return out
}
