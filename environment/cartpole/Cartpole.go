// Package cartpole implements the classic control cart-pole
// environment. A pole is hinged to a cart on a frictionless track and
// the agent pushes the cart left or right to keep the pole upright.
package cartpole

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gorl/ppo/environment"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnitude of force applied
	Dt             float64 = 0.02 // seconds between state updates

	// Episodes end when the cart or pole leaves these bounds
	PositionThreshold float64 = 2.4
	AngleThreshold    float64 = 12.0 * 2.0 * math.Pi / 360.0

	// Episodes are cut off after this many steps
	StepLimit int = 500

	// Starting state variables are drawn uniformly from
	// [-StartBound, StartBound]
	StartBound float64 = 0.05

	NumActions      int = 2
	ObservationSize int = 4
)

// Cartpole implements the cart-pole environment. Actions push the cart
// left (0) or right (1). Observations are the vector [position,
// velocity, pole angle, pole angular velocity]. Every step is rewarded
// 1.0, and episodes end when the cart leaves the track bounds, the pole
// falls past the angle threshold, or the step limit is hit.
type Cartpole struct {
	x     float64
	xDot  float64
	th    float64
	thDot float64

	steps int
	done  bool
	start distuv.Uniform
}

// New constructs a new Cartpole environment
func New(seed uint64) *Cartpole {
	return &Cartpole{
		done: true,
		start: distuv.Uniform{
			Min: -StartBound,
			Max: StartBound,
			Src: rand.NewSource(seed),
		},
	}
}

// Reset starts a new episode and returns its first observation
func (c *Cartpole) Reset() ([]float64, error) {
	c.x = c.start.Rand()
	c.xDot = c.start.Rand()
	c.th = c.start.Rand()
	c.thDot = c.start.Rand()
	c.steps = 0
	c.done = false

	return c.obs(), nil
}

// Step takes one action in the environment
func (c *Cartpole) Step(action int) ([]float64, float64, bool, error) {
	if c.done {
		return nil, 0, false, fmt.Errorf("step: episode ended, Reset " +
			"must be called")
	}
	if action < 0 || action >= NumActions {
		return nil, 0, false, fmt.Errorf("step: illegal action %v ∉ (0, 1)",
			action)
	}

	force := ForceMag
	if action == 0 {
		force = -ForceMag
	}

	cosTheta := math.Cos(c.th)
	sinTheta := math.Sin(c.th)

	totalMass := PoleMass + CartMass
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*c.thDot*c.thDot*sinTheta) / totalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/totalMass

	// Euler kinematic integration
	c.x += Dt * c.xDot
	c.xDot += Dt * xAcc
	c.th += Dt * c.thDot
	c.thDot += Dt * thAcc
	c.steps++

	failed := c.x < -PositionThreshold || c.x > PositionThreshold ||
		c.th < -AngleThreshold || c.th > AngleThreshold
	c.done = failed || c.steps >= StepLimit

	return c.obs(), 1.0, c.done, nil
}

// ObservationSize returns the number of observation features
func (c *Cartpole) ObservationSize() int { return ObservationSize }

// NumActions returns the number of available discrete actions
func (c *Cartpole) NumActions() int { return NumActions }

// State returns the current state variables for rendering
func (c *Cartpole) State() (x, th float64) {
	return c.x, c.th
}

func (c *Cartpole) obs() []float64 {
	return []float64{c.x, c.xDot, c.th, c.thDot}
}

var _ environment.Environment = (*Cartpole)(nil)
