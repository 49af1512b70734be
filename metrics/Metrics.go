// Package metrics tracks training statistics of an agent interacting
// with vectorized environments.
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Episodes accumulates per-worker episodic returns and lengths across
// rollouts. Because rollouts cut episodes at arbitrary points, a
// worker's running totals persist between Record calls until a
// termination flag closes the episode.
//
// Note: an episode must finish for its return to be reported. Episodes
// still running when training stops are never reported.
type Episodes struct {
	runningReturn []float64
	runningLength []int
}

// NewEpisodes returns an Episodes accumulator for workers parallel
// environments.
func NewEpisodes(workers int) *Episodes {
	return &Episodes{
		runningReturn: make([]float64, workers),
		runningLength: make([]int, workers),
	}
}

// Record consumes one rollout of rewards and termination flags, both
// workers × horizon with dones[w][t] = 1 exactly when worker w's
// episode ended during step t. It returns the returns and lengths of
// every episode completed during the rollout, in completion order.
func (e *Episodes) Record(rewards, dones *mat.Dense) ([]float64, []int,
	error) {
	workers, horizon := rewards.Dims()
	if dw, dh := dones.Dims(); dw != workers || dh != horizon {
		return nil, nil, fmt.Errorf("record: misaligned rollout "+
			"\n\trewards(%v x %v)\n\tdones(%v x %v)", workers, horizon, dw,
			dh)
	}
	if workers != len(e.runningReturn) {
		return nil, nil, fmt.Errorf("record: illegal number of workers "+
			"\n\twant(%v)\n\thave(%v)", len(e.runningReturn), workers)
	}

	var returns []float64
	var lengths []int
	for t := 0; t < horizon; t++ {
		for w := 0; w < workers; w++ {
			e.runningReturn[w] += rewards.At(w, t)
			e.runningLength[w]++
			if dones.At(w, t) != 0 {
				returns = append(returns, e.runningReturn[w])
				lengths = append(lengths, e.runningLength[w])
				e.runningReturn[w] = 0
				e.runningLength[w] = 0
			}
		}
	}
	return returns, lengths, nil
}
