package policy

import (
	"testing"

	"gorgonia.org/tensor"
)

func TestStackSharedStates(t *testing.T) {
	states := make([]State, 3)
	for i := range states {
		cell := Zero(1, 2)
		cell.Hidden.Set(0, float64(i))
		cell.Steps[0] = i
		states[i] = Shared{cell}
	}

	stacked, err := Stack(states)
	if err != nil {
		t.Fatalf("could not stack states: %v", err)
	}
	if stacked.Batch() != 3 {
		t.Fatalf("stacked batch is %v, expected 3", stacked.Batch())
	}

	shared, ok := stacked.(Shared)
	if !ok {
		t.Fatalf("stacked state is %T, expected Shared", stacked)
	}
	if !shared.Hidden.Shape().Eq(tensor.Shape{3, 2}) {
		t.Fatalf("stacked hidden shape is %v, expected (3, 2)",
			shared.Hidden.Shape())
	}
	for i := 0; i < 3; i++ {
		got, err := shared.Hidden.At(i, 0)
		if err != nil {
			t.Fatalf("could not index hidden state: %v", err)
		}
		if got.(float64) != float64(i) {
			t.Errorf("row %v hidden = %v, expected %v", i, got, i)
		}
		if shared.Steps[i] != i {
			t.Errorf("row %v steps = %v, expected %v", i, shared.Steps[i],
				i)
		}
	}
}

func TestStackSplitStates(t *testing.T) {
	states := []State{
		Split{Actor: Zero(1, 4), Critic: Zero(1, 2)},
		Split{Actor: Zero(1, 4), Critic: Zero(1, 2)},
	}

	stacked, err := Stack(states)
	if err != nil {
		t.Fatalf("could not stack states: %v", err)
	}

	split, ok := stacked.(Split)
	if !ok {
		t.Fatalf("stacked state is %T, expected Split", stacked)
	}
	if !split.Actor.Hidden.Shape().Eq(tensor.Shape{2, 4}) {
		t.Errorf("actor hidden shape is %v, expected (2, 4)",
			split.Actor.Hidden.Shape())
	}
	if !split.Critic.Hidden.Shape().Eq(tensor.Shape{2, 2}) {
		t.Errorf("critic hidden shape is %v, expected (2, 2)",
			split.Critic.Hidden.Shape())
	}
}

func TestStackRejectsMixedVariants(t *testing.T) {
	states := []State{
		Shared{Zero(1, 2)},
		Split{Actor: Zero(1, 2), Critic: Zero(1, 2)},
	}
	if _, err := Stack(states); err == nil {
		t.Error("expected an error stacking mixed state variants")
	}
}

func TestStepsSinceReset(t *testing.T) {
	shared := Shared{Cell{Steps: []int{0, 3, 7}}}
	steps, err := StepsSinceReset(shared)
	if err != nil {
		t.Fatalf("could not read counters: %v", err)
	}
	for i, want := range []int{0, 3, 7} {
		if steps[i] != want {
			t.Errorf("worker %v counter = %v, expected %v", i, steps[i],
				want)
		}
	}

	split := Split{
		Actor:  Cell{Steps: []int{1, 2}},
		Critic: Cell{Steps: []int{1, 2}},
	}
	steps, err = StepsSinceReset(split)
	if err != nil {
		t.Fatalf("could not read counters: %v", err)
	}
	if steps[1] != 2 {
		t.Errorf("worker 1 counter = %v, expected 2", steps[1])
	}
}
