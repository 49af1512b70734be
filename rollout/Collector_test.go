package rollout

import (
	"fmt"
	"testing"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/timestep"
)

// scriptedDriver replays a fixed rollout of batches and returns a fixed
// bootstrap step.
type scriptedDriver struct {
	batches   []timestep.Batch
	bootstrap timestep.Batch
}

func (d *scriptedDriver) Run(s policy.State, iterations int,
	observe func(timestep.Batch) error) (timestep.Batch, policy.State,
	error) {
	if iterations != len(d.batches) {
		return timestep.Batch{}, nil, fmt.Errorf("scripted for %v "+
			"iterations, asked for %v", len(d.batches), iterations)
	}
	for _, b := range d.batches {
		if err := observe(b); err != nil {
			return timestep.Batch{}, nil, err
		}
	}
	return d.bootstrap, s, nil
}

// valueNet is a stateless ActorCritic stub predicting each worker's
// first observation feature as its value.
type valueNet struct {
	workers  int
	features int
}

func (v *valueNet) Graph() *G.ExprGraph           { return nil }
func (v *valueNet) Learnables() G.Nodes           { return nil }
func (v *valueNet) Model() []G.ValueGrad          { return nil }
func (v *valueNet) SharedParams() bool            { return true }
func (v *valueNet) InitialState(int) policy.State { return nil }
func (v *valueNet) LogProb() *G.Node              { return nil }
func (v *valueNet) Value() *G.Node                { return nil }
func (v *valueNet) Entropy() *G.Node              { return nil }
func (v *valueNet) Refresh() error                { return nil }
func (v *valueNet) SetInputs(obs, dones, actions []float64,
	s policy.State) error {
	return nil
}

func (v *valueNet) Predict(obs, dones []float64, s policy.State,
	train bool) (*network.Prediction, error) {
	pred := &network.Prediction{
		Actions:  make([]float64, v.workers),
		LogProbs: make([]float64, v.workers),
		Values:   make([]float64, v.workers),
		State:    s,
	}
	for w := 0; w < v.workers; w++ {
		pred.Values[w] = obs[w*v.features]
	}
	return pred, nil
}

// rolloutScript builds a 2-worker, 4-step rollout. Worker 0's episode
// ends during step 1 (step 2 is marked Last) and worker 1's ends during
// step 3 (the bootstrap step is marked Last).
func rolloutScript() *scriptedDriver {
	const workers, horizon, features = 2, 4, 2

	batches := make([]timestep.Batch, horizon)
	for t := 0; t < horizon; t++ {
		types := make([]timestep.StepType, workers)
		for w := range types {
			switch {
			case t == 0:
				types[w] = timestep.First
			case t == 2 && w == 0:
				types[w] = timestep.Last
			default:
				types[w] = timestep.Mid
			}
		}

		obs := mat.NewDense(workers, features, []float64{
			float64(10 + t), float64(t),
			float64(20 + t), float64(t),
		})
		b := timestep.New(types, obs, t)
		b.Actions = []float64{0, 1}
		b.Rewards = []float64{float64(t), float64(-t)}
		b.LogProbs = []float64{-0.1, -0.2}
		b.Values = []float64{float64(t), float64(2 * t)}
		batches[t] = b
	}

	bootstrap := timestep.New(
		[]timestep.StepType{timestep.Mid, timestep.Last},
		mat.NewDense(workers, features, []float64{
			50, 0,
			60, 0,
		}),
		horizon,
	)
	return &scriptedDriver{batches: batches, bootstrap: bootstrap}
}

func TestCollectShiftsDones(t *testing.T) {
	const workers, horizon, features = 2, 4, 2
	net := &valueNet{workers: workers, features: features}
	collector, err := NewCollector(rolloutScript(), net, workers, horizon,
		features)
	if err != nil {
		t.Fatalf("could not create collector: %v", err)
	}

	exp, err := collector.Collect(nil)
	if err != nil {
		t.Fatalf("could not collect: %v", err)
	}

	// Worker 0's Last at step 2 means its episode ended during step 1;
	// worker 1's Last on the bootstrap step means its episode ended
	// during the final step of the rollout.
	wantDones := [][]float64{
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
	for w := 0; w < workers; w++ {
		for i, want := range wantDones[w] {
			if got := exp.Dones.At(w, i); got != want {
				t.Errorf("worker %v done[%v] = %v, expected %v", w, i, got,
					want)
			}
		}
	}
}

func TestCollectRearrangesTrajectories(t *testing.T) {
	const workers, horizon, features = 2, 4, 2
	net := &valueNet{workers: workers, features: features}
	collector, err := NewCollector(rolloutScript(), net, workers, horizon,
		features)
	if err != nil {
		t.Fatalf("could not create collector: %v", err)
	}

	exp, err := collector.Collect(nil)
	if err != nil {
		t.Fatalf("could not collect: %v", err)
	}

	for step := 0; step < horizon; step++ {
		if got := exp.WorkerObs(0, step)[0]; got != float64(10+step) {
			t.Errorf("worker 0 obs[%v] = %v, expected %v", step, got, 10+step)
		}
		if got := exp.WorkerObs(1, step)[0]; got != float64(20+step) {
			t.Errorf("worker 1 obs[%v] = %v, expected %v", step, got, 20+step)
		}

		if got := exp.Rewards.At(0, step); got != float64(step) {
			t.Errorf("worker 0 reward[%v] = %v, expected %v", step, got, step)
		}
		if got := exp.Rewards.At(1, step); got != float64(-step) {
			t.Errorf("worker 1 reward[%v] = %v, expected %v", step, got, -step)
		}

		if got := exp.Values.At(0, step); got != float64(step) {
			t.Errorf("worker 0 value[%v] = %v, expected %v", step, got, step)
		}
	}

	// The bootstrap column comes from a forward pass on the bootstrap
	// observations
	if got := exp.Values.At(0, horizon); got != 50 {
		t.Errorf("worker 0 bootstrap value %v, expected 50", got)
	}
	if got := exp.Values.At(1, horizon); got != 60 {
		t.Errorf("worker 1 bootstrap value %v, expected 60", got)
	}
}

func TestGather(t *testing.T) {
	m := mat.NewDense(2, 4, []float64{
		0, 1, 2, 3,
		10, 11, 12, 13,
	})

	got := Gather(m, [][]int{{2, 0}, {1, 3}})
	want := []float64{2, 0, 11, 13}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gathered[%v] = %v, expected %v", i, got[i], want[i])
		}
	}
}

func TestBufferLifecycle(t *testing.T) {
	buffer, err := NewBuffer(2)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	b := timestep.New([]timestep.StepType{timestep.First},
		mat.NewDense(1, 1, []float64{0}), 0)

	if _, err := buffer.Drain(); err == nil {
		t.Error("expected an error draining an incomplete rollout")
	}

	if err := buffer.Append(b); err != nil {
		t.Fatalf("could not append: %v", err)
	}
	if err := buffer.Append(b); err != nil {
		t.Fatalf("could not append: %v", err)
	}
	if err := buffer.Append(b); err == nil {
		t.Error("expected an error appending beyond the horizon")
	}

	batches, err := buffer.Drain()
	if err != nil {
		t.Fatalf("could not drain: %v", err)
	}
	if len(batches) != 2 {
		t.Errorf("drained %v batches, expected 2", len(batches))
	}
	if buffer.Len() != 0 {
		t.Errorf("buffer holds %v batches after a drain", buffer.Len())
	}
}
