package metrics

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRecordCompletedEpisodes(t *testing.T) {
	episodes := NewEpisodes(2)

	rewards := mat.NewDense(2, 4, []float64{
		1, 1, 1, 1,
		2, 2, 2, 2,
	})
	dones := mat.NewDense(2, 4, []float64{
		0, 1, 0, 1,
		0, 0, 0, 0,
	})

	returns, lengths, err := episodes.Record(rewards, dones)
	if err != nil {
		t.Fatalf("could not record: %v", err)
	}

	// Worker 0 completed two 2-step episodes; worker 1 completed none
	if len(returns) != 2 {
		t.Fatalf("got %v completed episodes, expected 2", len(returns))
	}
	for i, r := range returns {
		if r != 2.0 {
			t.Errorf("episode %v return %v, expected 2.0", i, r)
		}
		if lengths[i] != 2 {
			t.Errorf("episode %v length %v, expected 2", i, lengths[i])
		}
	}
}

func TestRecordSpansRollouts(t *testing.T) {
	episodes := NewEpisodes(1)

	first := mat.NewDense(1, 3, []float64{1, 1, 1})
	noDones := mat.NewDense(1, 3, nil)
	returns, _, err := episodes.Record(first, noDones)
	if err != nil {
		t.Fatalf("could not record: %v", err)
	}
	if len(returns) != 0 {
		t.Fatalf("unfinished episode reported a return")
	}

	// The episode ends two steps into the next rollout
	second := mat.NewDense(1, 3, []float64{1, 1, 5})
	dones := mat.NewDense(1, 3, []float64{0, 1, 0})
	returns, lengths, err := episodes.Record(second, dones)
	if err != nil {
		t.Fatalf("could not record: %v", err)
	}

	if len(returns) != 1 {
		t.Fatalf("got %v completed episodes, expected 1", len(returns))
	}
	if returns[0] != 5.0 {
		t.Errorf("episode return %v, expected 5.0 accumulated across "+
			"rollouts", returns[0])
	}
	if lengths[0] != 5 {
		t.Errorf("episode length %v, expected 5", lengths[0])
	}
}

func TestRecordMisalignedShapes(t *testing.T) {
	episodes := NewEpisodes(2)
	rewards := mat.NewDense(2, 4, nil)
	dones := mat.NewDense(2, 3, nil)
	if _, _, err := episodes.Record(rewards, dones); err == nil {
		t.Error("expected an error for misaligned rollout shapes")
	}
}
