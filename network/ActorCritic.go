// Package network defines the actor-critic network collaborator that
// the PPO core trains, together with a concrete feedforward
// implementation.
package network

import (
	G "gorgonia.org/gorgonia"

	"github.com/gorl/ppo/policy"
)

// ActorCritic is the policy/value network trained by the PPO core. The
// network owns its Gorgonia expression graph; the agent builds its loss
// on top of the training surface and drives gradient steps through
// Model() with a Gorgonia solver.
//
// The training surface has a fixed shape decided at construction:
// SetInputs accepts row-major inputs covering workers × steps samples,
// and LogProb, Value, and Entropy are prediction vector nodes of length
// workers·steps in the same order.
//
// Predict is the value-level inference pass used while stepping the
// environments and for bootstrap values. It accepts a batch equal to
// the configured worker count; recurrent implementations must
// additionally accept single-worker batches, which the agent uses when
// replaying trajectory suffixes. Stateless networks may return a nil
// initial state and must pass states through Predict unchanged.
type ActorCritic interface {
	// Graph returns the expression graph holding the training surface.
	Graph() *G.ExprGraph

	// Learnables returns the trainable parameter nodes.
	Learnables() G.Nodes

	// Model returns the trainable parameters with their gradients, as
	// consumed by a Gorgonia solver.
	Model() []G.ValueGrad

	// SharedParams reports whether the actor and critic share
	// parameters, and hence a single recurrent state.
	SharedParams() bool

	// InitialState returns a fresh (zeroed) recurrent state batched
	// over the given number of workers, or nil for stateless networks.
	InitialState(batch int) policy.State

	// SetInputs assigns the training placeholders. obs is row-major
	// with workers·steps rows of feature vectors; dones and actions
	// hold one entry per row. The state is the recurrent state at the
	// start of the rollout the samples were drawn from.
	SetInputs(obs, dones, actions []float64, s policy.State) error

	// LogProb is the log-probability prediction node for the actions
	// passed to SetInputs.
	LogProb() *G.Node

	// Value is the state-value prediction node.
	Value() *G.Node

	// Entropy is the policy entropy prediction node.
	Entropy() *G.Node

	// Predict runs the network in inference (train == false) or
	// training (train == true) mode on a single batched timestep,
	// sampling an action per worker and advancing the recurrent state.
	Predict(obs, dones []float64, s policy.State, train bool) (*Prediction,
		error)

	// Refresh propagates the trained weights to the prediction pass.
	// Called after each round of gradient steps, before the next
	// collection.
	Refresh() error
}

// Prediction holds the value-level outputs of a single batched forward
// pass, one entry per worker.
type Prediction struct {
	Actions  []float64
	LogProbs []float64
	Values   []float64
	State    policy.State
}
