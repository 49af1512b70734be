// Package policy implements the recurrent policy state carried by an
// actor-critic network across timesteps.
package policy

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Cell holds the recurrent state of a single network stack for a batch
// of workers. Hidden is the batched hidden state with one row per
// worker. Steps counts, per worker, the number of timesteps processed
// since the last episode boundary: implementations must reset a
// worker's counter to 0 exactly when an episode boundary is crossed for
// that worker and increment it otherwise.
type Cell struct {
	Hidden *tensor.Dense
	Steps  []int
}

// Zero returns a Cell with a zeroed hidden state of the given size and
// zeroed step counters for batch workers.
func Zero(batch, size int) Cell {
	return Cell{
		Hidden: tensor.New(
			tensor.Of(tensor.Float64),
			tensor.WithShape(batch, size),
		),
		Steps: make([]int, batch),
	}
}

// State is a batched recurrent policy state. It is one of exactly two
// variants: Shared, when the actor and critic share parameters and
// hence a single recurrent stack, or Split, when each has its own. The
// variant is fixed at network construction.
//
// A nil State denotes a stateless (non-recurrent) network.
type State interface {
	// Batch returns the number of workers the State is batched over.
	Batch() int

	state()
}

// Shared is the recurrent state of a network whose actor and critic
// share parameters.
type Shared struct {
	Cell
}

func (s Shared) Batch() int { return len(s.Steps) }
func (Shared) state()       {}

// Split holds independent actor-side and critic-side recurrent states.
type Split struct {
	Actor  Cell
	Critic Cell
}

func (s Split) Batch() int { return len(s.Actor.Steps) }
func (Split) state()       {}

// StepsSinceReset returns the per-worker steps-since-reset counters of
// a State. For Split states the actor-side counters are used; actor and
// critic counters advance from identical done inputs.
func StepsSinceReset(s State) ([]int, error) {
	switch st := s.(type) {
	case Shared:
		return st.Steps, nil
	case Split:
		return st.Actor.Steps, nil
	default:
		return nil, fmt.Errorf("stepssincereset: malformed policy state %T", s)
	}
}

// Stack rebatches per-worker States (each of batch size 1) into a
// single State. All inputs must share the same variant; a mix of Shared
// and Split states is a data-integrity error.
func Stack(states []State) (State, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("stack: no states to stack")
	}

	switch states[0].(type) {
	case Shared:
		cells := make([]Cell, len(states))
		for i, s := range states {
			shared, ok := s.(Shared)
			if !ok {
				return nil, fmt.Errorf("stack: state %v is %T, want Shared",
					i, s)
			}
			cells[i] = shared.Cell
		}
		cell, err := stackCells(cells)
		if err != nil {
			return nil, fmt.Errorf("stack: %v", err)
		}
		return Shared{cell}, nil

	case Split:
		actors := make([]Cell, len(states))
		critics := make([]Cell, len(states))
		for i, s := range states {
			split, ok := s.(Split)
			if !ok {
				return nil, fmt.Errorf("stack: state %v is %T, want Split",
					i, s)
			}
			actors[i] = split.Actor
			critics[i] = split.Critic
		}
		actor, err := stackCells(actors)
		if err != nil {
			return nil, fmt.Errorf("stack: actor: %v", err)
		}
		critic, err := stackCells(critics)
		if err != nil {
			return nil, fmt.Errorf("stack: critic: %v", err)
		}
		return Split{Actor: actor, Critic: critic}, nil

	default:
		return nil, fmt.Errorf("stack: malformed policy state %T", states[0])
	}
}

// stackCells concatenates single-worker Cells along the batch
// dimension.
func stackCells(cells []Cell) (Cell, error) {
	hiddens := make([]*tensor.Dense, 0, len(cells))
	steps := make([]int, 0, len(cells))
	for _, c := range cells {
		if c.Hidden != nil {
			hiddens = append(hiddens, c.Hidden)
		}
		steps = append(steps, c.Steps...)
	}

	var hidden *tensor.Dense
	if len(hiddens) > 0 {
		if len(hiddens) != len(cells) {
			return Cell{}, fmt.Errorf("stackcells: %v of %v cells have a "+
				"hidden state", len(hiddens), len(cells))
		}
		var err error
		hidden, err = hiddens[0].Concat(0, hiddens[1:]...)
		if err != nil {
			return Cell{}, fmt.Errorf("stackcells: could not concatenate "+
				"hidden states: %v", err)
		}
	}

	return Cell{Hidden: hidden, Steps: steps}, nil
}
