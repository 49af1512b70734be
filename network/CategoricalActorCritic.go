package network

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorl/ppo/initwfn"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/utils/op"
)

// CategoricalActorCritic is a feedforward actor-critic network with
// shared parameters: a fully connected body feeding a softmax policy
// head over discrete actions and a linear state-value head. The network
// is stateless, so InitialState returns nil and Predict passes states
// through unchanged.
//
// Two copies of the architecture are kept: a training copy whose graph
// carries the loss built by the agent, sized for workers·steps samples,
// and a prediction copy sized for one sample per worker. Refresh copies
// the trained weights into the prediction copy.
type CategoricalActorCritic struct {
	features   int
	numActions int
	workers    int
	steps      int

	// Training surface
	g            *G.ExprGraph
	trainLayers  []*fcLayer
	obs          *G.Node
	actionOneHot *G.Node
	logProb      *G.Node
	value        *G.Node
	entropy      *G.Node
	learnables   G.Nodes
	model        []G.ValueGrad

	// Prediction surface
	predGraph      *G.ExprGraph
	predLayers     []*fcLayer
	predObs        *G.Node
	predLogitsVal  G.Value
	predValuesVal  G.Value
	vm             G.VM
	predLearnables G.Nodes

	rng *rand.Rand
}

// NewCategoricalActorCritic returns a new CategoricalActorCritic over
// observations of the given feature count and numActions discrete
// actions. The training surface covers workers·steps samples; the
// prediction surface covers one sample per worker. hiddenSizes and
// activations describe the shared body; both heads are linear.
func NewCategoricalActorCritic(features, numActions, workers, steps int,
	hiddenSizes []int, activations []*Activation, init *initwfn.InitWFn,
	seed uint64) (*CategoricalActorCritic, error) {
	if features <= 0 || numActions <= 1 {
		return nil, fmt.Errorf("newcategoricalactorcritic: need at least "+
			"one feature and two actions, got %v and %v", features, numActions)
	}
	if workers <= 0 || steps <= 0 {
		return nil, fmt.Errorf("newcategoricalactorcritic: illegal batch "+
			"%v x %v", workers, steps)
	}
	if init == nil {
		return nil, fmt.Errorf("newcategoricalactorcritic: no weight " +
			"initializer given")
	}

	c := &CategoricalActorCritic{
		features:   features,
		numActions: numActions,
		workers:    workers,
		steps:      steps,
		rng:        rand.New(rand.NewSource(seed)),
	}

	// Training copy
	batch := workers * steps
	c.g = G.NewGraph()
	obs, logits, valueOut, layers, err := buildHeads(c.g, batch, features,
		numActions, hiddenSizes, activations, init.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newcategoricalactorcritic: %v", err)
	}
	c.obs = obs
	c.trainLayers = layers

	c.actionOneHot = G.NewMatrix(
		c.g,
		tensor.Float64,
		G.WithShape(batch, numActions),
		G.WithName("actionIndices"),
		G.WithInit(G.Zeroes()),
	)

	// Log-probability of the inputted actions: the one-hot product
	// selects each sample's logit, shifted by the log partition
	// function.
	chosen := G.Must(G.HadamardProd(c.actionOneHot, logits))
	chosen = G.Must(G.Sum(chosen, 1))
	lse := op.LogSumExp(logits, 1)
	c.logProb = G.Must(G.Sub(chosen, lse))

	// Entropy of the softmax distribution: -Σ p·log p with
	// log p = logits - lse.
	centered := G.Must(G.BroadcastSub(logits, lse, nil, []byte{1}))
	probs := G.Must(G.Exp(centered))
	c.entropy = G.Must(G.Sum(G.Must(G.HadamardProd(probs, centered)), 1))
	c.entropy = G.Must(G.Neg(c.entropy))

	c.value = G.Must(G.Ravel(valueOut))
	c.learnables = learnables(layers)

	// Prediction copy
	c.predGraph = G.NewGraph()
	predObs, predLogits, predValueOut, predLayers, err := buildHeads(
		c.predGraph, workers, features, numActions, hiddenSizes, activations,
		init.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newcategoricalactorcritic: %v", err)
	}
	c.predObs = predObs
	c.predLayers = predLayers
	c.predLearnables = learnables(predLayers)

	G.Read(predLogits, &c.predLogitsVal)
	predValues := G.Must(G.Ravel(predValueOut))
	G.Read(predValues, &c.predValuesVal)
	c.vm = G.NewTapeMachine(c.predGraph)

	// Both copies were independently initialized; align them before
	// first use.
	if err := c.Refresh(); err != nil {
		return nil, fmt.Errorf("newcategoricalactorcritic: %v", err)
	}

	return c, nil
}

// buildHeads stacks the shared body and the policy and value heads on
// graph g, returning the observation input node, the logits node of
// shape [batch, numActions], the value node of shape [batch, 1], and
// all layers in learnable order.
func buildHeads(g *G.ExprGraph, batch, features, numActions int,
	hiddenSizes []int, activations []*Activation,
	init G.InitWFn) (*G.Node, *G.Node, *G.Node, []*fcLayer, error) {
	obs := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("observations"),
		G.WithInit(G.Zeroes()),
	)

	body, err := addFCLayers(g, features, hiddenSizes, activations, init,
		"Body")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	hidden, err := fwdLayers(obs, body)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	bodyOut := features
	if len(hiddenSizes) > 0 {
		bodyOut = hiddenSizes[len(hiddenSizes)-1]
	}

	policyHead := newFCLayer(g, bodyOut, numActions, init, Identity(),
		"Policy")
	logits, err := policyHead.fwd(hidden)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	valueHead := newFCLayer(g, bodyOut, 1, init, Identity(), "Value")
	valueOut, err := valueHead.fwd(hidden)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	layers := append(append([]*fcLayer{}, body...), policyHead, valueHead)
	return obs, logits, valueOut, layers, nil
}

// Graph returns the graph holding the training surface.
func (c *CategoricalActorCritic) Graph() *G.ExprGraph {
	return c.g
}

// Learnables returns the learnable nodes of the training surface.
func (c *CategoricalActorCritic) Learnables() G.Nodes {
	return c.learnables
}

// Model returns the learnables nodes with their gradients.
func (c *CategoricalActorCritic) Model() []G.ValueGrad {
	// Lazy instantiation
	if c.model == nil {
		c.model = make([]G.ValueGrad, 0, len(c.learnables))
		for _, node := range c.learnables {
			c.model = append(c.model, node)
		}
	}
	return c.model
}

// SharedParams reports that the actor and critic share parameters.
func (c *CategoricalActorCritic) SharedParams() bool { return true }

// InitialState returns nil: the network is stateless.
func (c *CategoricalActorCritic) InitialState(batch int) policy.State {
	return nil
}

// LogProb is the log-probability prediction node.
func (c *CategoricalActorCritic) LogProb() *G.Node { return c.logProb }

// Value is the state-value prediction node.
func (c *CategoricalActorCritic) Value() *G.Node { return c.value }

// Entropy is the policy entropy prediction node.
func (c *CategoricalActorCritic) Entropy() *G.Node { return c.entropy }

// SetInputs assigns the training placeholders. The recurrent state and
// done flags are ignored by this stateless architecture.
func (c *CategoricalActorCritic) SetInputs(obs, dones, actions []float64,
	s policy.State) error {
	batch := c.workers * c.steps
	if len(obs) != batch*c.features {
		return fmt.Errorf("setinputs: illegal obs length \n\twant(%v)"+
			"\n\thave(%v)", batch*c.features, len(obs))
	}
	if len(actions) != batch {
		return fmt.Errorf("setinputs: illegal actions length \n\twant(%v)"+
			"\n\thave(%v)", batch, len(actions))
	}

	oneHot := make([]float64, batch*c.numActions)
	for i, a := range actions {
		action := int(a)
		if action < 0 || action >= c.numActions {
			return fmt.Errorf("setinputs: action %v out of range [0, %v)",
				action, c.numActions)
		}
		oneHot[i*c.numActions+action] = 1.0
	}

	obsTensor := tensor.New(
		tensor.WithBacking(obs),
		tensor.WithShape(batch, c.features),
	)
	if err := G.Let(c.obs, obsTensor); err != nil {
		return fmt.Errorf("setinputs: could not set observations: %v", err)
	}

	oneHotTensor := tensor.New(
		tensor.WithBacking(oneHot),
		tensor.WithShape(batch, c.numActions),
	)
	if err := G.Let(c.actionOneHot, oneHotTensor); err != nil {
		return fmt.Errorf("setinputs: could not set actions: %v", err)
	}
	return nil
}

// Predict samples an action per worker from the softmax policy and
// returns the per-worker log-probabilities and value estimates. The
// recurrent state is passed through unchanged.
func (c *CategoricalActorCritic) Predict(obs, dones []float64,
	s policy.State, train bool) (*Prediction, error) {
	if len(obs) != c.workers*c.features {
		return nil, fmt.Errorf("predict: illegal obs length \n\twant(%v)"+
			"\n\thave(%v)", c.workers*c.features, len(obs))
	}

	obsTensor := tensor.New(
		tensor.WithBacking(obs),
		tensor.WithShape(c.workers, c.features),
	)
	if err := G.Let(c.predObs, obsTensor); err != nil {
		return nil, fmt.Errorf("predict: could not set observations: %v", err)
	}
	if err := c.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run prediction: %v", err)
	}
	logits := c.predLogitsVal.Data().([]float64)
	values := floatData(c.predValuesVal)
	c.vm.Reset()

	pred := &Prediction{
		Actions:  make([]float64, c.workers),
		LogProbs: make([]float64, c.workers),
		Values:   values,
		State:    s,
	}
	for w := 0; w < c.workers; w++ {
		probs := softmax(logits[w*c.numActions : (w+1)*c.numActions])
		action := sample(probs, c.rng)
		pred.Actions[w] = float64(action)
		pred.LogProbs[w] = math.Log(probs[action])
	}
	return pred, nil
}

// Refresh copies the trained weights into the prediction copy.
func (c *CategoricalActorCritic) Refresh() error {
	for i, dst := range c.predLearnables {
		src := c.learnables[i].Clone()
		if err := G.Let(dst, src.(*G.Node).Value()); err != nil {
			return fmt.Errorf("refresh: could not copy weights of %v: %v",
				c.learnables[i].Name(), err)
		}
	}
	return nil
}

// Close releases the prediction virtual machine.
func (c *CategoricalActorCritic) Close() error {
	return c.vm.Close()
}

// softmax computes the softmax of a logits row, shifted by the max
// logit for numerical stability.
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, l := range logits {
		if l > max {
			max = l
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		probs[i] = math.Exp(l - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// sample draws an index from a probability vector.
func sample(probs []float64, rng *rand.Rand) int {
	u := rng.Float64()
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if u < cumulative {
			return i
		}
	}
	return len(probs) - 1
}

// floatData extracts a float slice from a Gorgonia value, promoting the
// scalar a single-element tensor collapses to.
func floatData(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out
	case float64:
		return []float64{data}
	default:
		panic(fmt.Sprintf("floatdata: unexpected value type %T", data))
	}
}
