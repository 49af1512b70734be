package driver

import (
	"fmt"
	"testing"

	G "gorgonia.org/gorgonia"

	"github.com/gorl/ppo/environment"
	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/timestep"
)

// episodicEnv ends an episode every episodeLen steps. Observations are
// [worker, steps-into-episode].
type episodicEnv struct {
	worker     int
	episodeLen int
	steps      int
	done       bool
}

func (e *episodicEnv) Reset() ([]float64, error) {
	e.steps = 0
	e.done = false
	return []float64{float64(e.worker), 0}, nil
}

func (e *episodicEnv) Step(action int) ([]float64, float64, bool, error) {
	if e.done {
		return nil, 0, false, fmt.Errorf("step on ended episode")
	}
	e.steps++
	e.done = e.steps >= e.episodeLen
	return []float64{float64(e.worker), float64(e.steps)}, 1.0, e.done, nil
}

func (e *episodicEnv) ObservationSize() int { return 2 }
func (e *episodicEnv) NumActions() int      { return 2 }

// constantNet is a stateless ActorCritic stub whose Predict always
// chooses action 0 and counts its calls.
type constantNet struct {
	workers  int
	features int
	calls    int
}

func (c *constantNet) Graph() *G.ExprGraph              { return nil }
func (c *constantNet) Learnables() G.Nodes              { return nil }
func (c *constantNet) Model() []G.ValueGrad             { return nil }
func (c *constantNet) SharedParams() bool               { return true }
func (c *constantNet) InitialState(int) policy.State    { return nil }
func (c *constantNet) LogProb() *G.Node                 { return nil }
func (c *constantNet) Value() *G.Node                   { return nil }
func (c *constantNet) Entropy() *G.Node                 { return nil }
func (c *constantNet) Refresh() error                   { return nil }
func (c *constantNet) SetInputs(obs, dones, actions []float64,
	s policy.State) error {
	return nil
}

func (c *constantNet) Predict(obs, dones []float64, s policy.State,
	train bool) (*network.Prediction, error) {
	if len(obs) != c.workers*c.features {
		return nil, fmt.Errorf("predict: illegal obs length %v", len(obs))
	}
	c.calls++

	pred := &network.Prediction{
		Actions:  make([]float64, c.workers),
		LogProbs: make([]float64, c.workers),
		Values:   make([]float64, c.workers),
		State:    s,
	}
	for w := range pred.LogProbs {
		pred.LogProbs[w] = -0.5
		pred.Values[w] = float64(c.calls)
	}
	return pred, nil
}

func newTestDriver(t *testing.T, workers, episodeLen int) (*Sync,
	*constantNet) {
	t.Helper()
	envs, err := environment.NewVector(workers,
		func(w int) (environment.Environment, error) {
			return &episodicEnv{worker: w, episodeLen: episodeLen}, nil
		})
	if err != nil {
		t.Fatalf("could not create environments: %v", err)
	}
	net := &constantNet{workers: workers, features: 2}
	return NewSync(envs, net), net
}

func TestRunMarksEpisodeBoundaries(t *testing.T) {
	const workers, episodeLen, horizon = 2, 3, 7
	d, _ := newTestDriver(t, workers, episodeLen)

	var batches []timestep.Batch
	bootstrap, _, err := d.Run(nil, horizon, func(b timestep.Batch) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		t.Fatalf("could not run driver: %v", err)
	}
	if len(batches) != horizon {
		t.Fatalf("observed %v timesteps, expected %v", len(batches), horizon)
	}

	for w := 0; w < workers; w++ {
		for i, b := range batches {
			var want timestep.StepType
			switch {
			case i == 0:
				want = timestep.First
			case i%episodeLen == 0:
				// Episodes end during steps 2 and 5, so steps 3 and 6
				// start fresh episodes
				want = timestep.Last
			default:
				want = timestep.Mid
			}
			if b.Types[w] != want {
				t.Errorf("worker %v step %v has type %v, expected %v", w, i,
					b.Types[w], want)
			}
		}
	}

	// The rollout ended one step after an episode boundary
	if bootstrap.Number != horizon {
		t.Errorf("bootstrap step number is %v, expected %v",
			bootstrap.Number, horizon)
	}
	for w := 0; w < workers; w++ {
		if bootstrap.Last(w) {
			t.Errorf("worker %v bootstrap marked as an episode boundary", w)
		}
	}
}

func TestRunRecordsActingPolicy(t *testing.T) {
	const workers, horizon = 2, 4
	d, _ := newTestDriver(t, workers, 100)

	var batches []timestep.Batch
	_, _, err := d.Run(nil, horizon, func(b timestep.Batch) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		t.Fatalf("could not run driver: %v", err)
	}

	for i, b := range batches {
		if b.Number != i {
			t.Errorf("step %v numbered %v", i, b.Number)
		}
		for w := 0; w < workers; w++ {
			if b.Actions[w] != 0 {
				t.Errorf("step %v worker %v action %v, expected 0", i, w,
					b.Actions[w])
			}
			if b.LogProbs[w] != -0.5 {
				t.Errorf("step %v worker %v log prob %v, expected -0.5", i,
					w, b.LogProbs[w])
			}
			if b.Rewards[w] != 1.0 {
				t.Errorf("step %v worker %v reward %v, expected 1.0", i, w,
					b.Rewards[w])
			}
			// Values come from the forward pass for this step
			if b.Values[w] != float64(i+1) {
				t.Errorf("step %v worker %v value %v, expected %v", i, w,
					b.Values[w], i+1)
			}
		}
	}
}

func TestRunContinuesAcrossCalls(t *testing.T) {
	const workers, episodeLen = 2, 5
	d, _ := newTestDriver(t, workers, episodeLen)

	if _, _, err := d.Run(nil, 3, func(timestep.Batch) error {
		return nil
	}); err != nil {
		t.Fatalf("could not run driver: %v", err)
	}

	// The episode is 3 steps in; it must end 2 steps into the next run
	// without restarting
	var batches []timestep.Batch
	_, _, err := d.Run(nil, 3, func(b timestep.Batch) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		t.Fatalf("could not run driver: %v", err)
	}

	if batches[0].Types[0] != timestep.Mid {
		t.Errorf("cursor restarted: second run began with %v",
			batches[0].Types[0])
	}
	if batches[2].Types[0] != timestep.Last {
		t.Errorf("episode boundary not carried across runs: got %v",
			batches[2].Types[0])
	}
	if batches[0].Number != 3 {
		t.Errorf("step numbering restarted at %v", batches[0].Number)
	}
}
