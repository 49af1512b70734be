package gae

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const tolerance = 1e-12

// TestEstimateBaseCase checks the recursion base case: with horizon 1
// the advantage is exactly the one-step TD residual.
func TestEstimateBaseCase(t *testing.T) {
	discount := 0.99
	lambda := 0.95

	rewards := mat.NewDense(1, 1, []float64{2.0})
	values := mat.NewDense(1, 2, []float64{0.5, 1.5})
	dones := mat.NewDense(1, 1, []float64{0.0})

	adv, err := Estimate(discount, lambda, rewards, values, dones)
	if err != nil {
		t.Fatal(err)
	}

	want := 2.0 + discount*1.5 - 0.5
	if got := adv.At(0, 0); math.Abs(got-want) > tolerance {
		t.Errorf("base case advantage:\n\twant(%v)\n\thave(%v)", want, got)
	}

	// A terminal transition must drop the bootstrap term
	dones.Set(0, 0, 1.0)
	adv, err = Estimate(discount, lambda, rewards, values, dones)
	if err != nil {
		t.Fatal(err)
	}
	want = 2.0 - 0.5
	if got := adv.At(0, 0); math.Abs(got-want) > tolerance {
		t.Errorf("terminal base case advantage:\n\twant(%v)\n\thave(%v)",
			want, got)
	}
}

// TestEstimateTerminalMasking checks that a done flag stops advantage
// propagation backward through the recursion: the advantage at a
// terminal step depends only on that step's residual.
func TestEstimateTerminalMasking(t *testing.T) {
	discount := 0.9
	lambda := 0.8

	rewards := mat.NewDense(1, 3, []float64{1.0, 1.0, 100.0})
	values := mat.NewDense(1, 4, []float64{0.0, 0.0, 0.0, 50.0})
	dones := mat.NewDense(1, 3, []float64{0.0, 1.0, 0.0})

	adv, err := Estimate(discount, lambda, rewards, values, dones)
	if err != nil {
		t.Fatal(err)
	}

	// Step 1 terminated: its advantage is exactly δ[1] = r[1] - v[1],
	// with no contribution from the large reward or bootstrap at t=2.
	if got, want := adv.At(0, 1), 1.0; math.Abs(got-want) > tolerance {
		t.Errorf("terminal advantage:\n\twant(%v)\n\thave(%v)", want, got)
	}

	// Step 0 still accumulates through step 1 since step 0 itself did
	// not terminate.
	delta0 := 1.0 + discount*0.0 - 0.0
	want := delta0 + discount*lambda*adv.At(0, 1)
	if got := adv.At(0, 0); math.Abs(got-want) > tolerance {
		t.Errorf("pre-terminal advantage:\n\twant(%v)\n\thave(%v)", want, got)
	}
}

// TestEstimateTwoWorkers replays the full recursion on a small
// two-worker rollout and checks each advantage exactly.
func TestEstimateTwoWorkers(t *testing.T) {
	discount := 0.99
	lambda := 0.95
	horizon := 4

	rewards := mat.NewDense(2, 4, []float64{
		1, 1, 1, 1,
		0, 0, 0, 0,
	})
	values := mat.NewDense(2, 5, nil)
	dones := mat.NewDense(2, 4, nil)

	adv, err := Estimate(discount, lambda, rewards, values, dones)
	if err != nil {
		t.Fatal(err)
	}

	// Direct recursion: all values and dones are zero, so
	// A[t] = r[t] + γλ·A[t+1].
	want := make([]float64, horizon)
	next := 0.0
	for t := horizon - 1; t >= 0; t-- {
		want[t] = 1.0 + discount*lambda*next
		next = want[t]
	}

	for i := 0; i < horizon; i++ {
		if got := adv.At(0, i); math.Abs(got-want[i]) > tolerance {
			t.Errorf("worker 0 advantage %v:\n\twant(%v)\n\thave(%v)",
				i, want[i], got)
		}
		if got := adv.At(1, i); got != 0.0 {
			t.Errorf("worker 1 advantage %v: want(0) have(%v)", i, got)
		}
	}

	// Later rewards are discounted through fewer accumulation steps, so
	// worker 0's advantages strictly decrease in time.
	for i := 1; i < horizon; i++ {
		if adv.At(0, i) >= adv.At(0, i-1) {
			t.Errorf("advantages not strictly decreasing at %v: %v >= %v",
				i, adv.At(0, i), adv.At(0, i-1))
		}
	}
}

func TestEstimateShapeErrors(t *testing.T) {
	rewards := mat.NewDense(2, 4, nil)
	dones := mat.NewDense(2, 4, nil)

	// Missing bootstrap column
	if _, err := Estimate(0.99, 0.95, rewards, mat.NewDense(2, 4, nil),
		dones); err == nil {
		t.Error("expected error for values without a bootstrap column")
	}

	if _, err := Estimate(0.99, 0.95, rewards, mat.NewDense(2, 5, nil),
		mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected error for misshapen dones")
	}
}

func TestReturns(t *testing.T) {
	adv := mat.NewDense(1, 2, []float64{0.5, -1.0})
	values := mat.NewDense(1, 3, []float64{1.0, 2.0, 99.0})

	returns, err := Returns(adv, values)
	if err != nil {
		t.Fatal(err)
	}

	if got := returns.At(0, 0); math.Abs(got-1.5) > tolerance {
		t.Errorf("returns[0]:\n\twant(%v)\n\thave(%v)", 1.5, got)
	}
	if got := returns.At(0, 1); math.Abs(got-1.0) > tolerance {
		t.Errorf("returns[1]:\n\twant(%v)\n\thave(%v)", 1.0, got)
	}
}
