// Package timestep implements timesteps of the agent-environment
// interaction for a vectorized set of parallel environments.
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a worker's slot in a Batch can
// be: the first step of a run, a middle step, or the step immediately
// following an episode boundary.
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// Batch packages together a single lockstep timestep across all
// parallel workers. Observations holds one row per worker. Actions,
// Rewards, LogProbs, and Values hold one entry per worker, aligned with
// the observation rows: Actions[w] was selected at Observations row w,
// Rewards[w] is the reward received for taking that action, and
// LogProbs[w] and Values[w] are the acting policy's log-probability and
// value estimate for that state.
//
// Types[w] == Last marks a step whose observation begins a fresh
// episode for worker w: the transition into this step crossed an
// episode boundary.
type Batch struct {
	Types        []StepType
	Observations *mat.Dense
	Actions      []float64
	Rewards      []float64
	LogProbs     []float64
	Values       []float64
	Number       int
}

// New returns a Batch over the given per-worker step types and
// observations, with action, reward, log-probability and value slots
// left for the caller to fill.
func New(types []StepType, obs *mat.Dense, number int) Batch {
	return Batch{Types: types, Observations: obs, Number: number}
}

// NumWorkers returns the number of parallel workers in the Batch.
func (b Batch) NumWorkers() int {
	return len(b.Types)
}

// Last returns whether worker w's slot follows an episode boundary.
func (b Batch) Last(w int) bool {
	return b.Types[w] == Last
}

// Dones returns the episode-boundary flags of the Batch as a float
// vector, 1 where the worker's step follows an episode boundary and 0
// elsewhere.
func (b Batch) Dones() []float64 {
	dones := make([]float64, len(b.Types))
	for w, t := range b.Types {
		if t == Last {
			dones[w] = 1.0
		}
	}
	return dones
}

// WorkerObs returns worker w's observation vector.
func (b Batch) WorkerObs(w int) []float64 {
	return b.Observations.RawRowView(w)
}

func (b Batch) String() string {
	return fmt.Sprintf("Batch | Workers: %v | Step Number: %v",
		b.NumWorkers(), b.Number)
}
