package ppo

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/utils/op"
)

// Losses holds the loss terms of a single gradient step. Policy is the
// clipped surrogate objective, Value the critic's mean squared error,
// and Entropy the mean policy entropy. Total is the optimized
// combination Policy + ValueCoef·Value − EntropyCoef·Entropy.
type Losses struct {
	Policy  float64
	Value   float64
	Entropy float64
	Total   float64
}

// lossGraph builds the PPO objective on top of a network's training
// surface and owns the virtual machine that computes its gradients. The
// minibatch targets and the clipping range are placeholders assigned
// before each run, so one compiled graph serves the entire training
// run.
type lossGraph struct {
	net   network.ActorCritic
	batch int

	advantages  *G.Node
	oldLogProbs *G.Node
	returns     *G.Node
	clipMin     *G.Node
	clipMax     *G.Node

	policyLossVal G.Value
	valueLossVal  G.Value
	entropyVal    G.Value
	totalVal      G.Value

	vm G.VM
}

// newLossGraph builds the objective for minibatches of the given batch
// size. The network's prediction nodes must already exist on its graph.
func newLossGraph(net network.ActorCritic, batch int, valueCoef,
	entropyCoef float64) (*lossGraph, error) {
	g := net.Graph()

	l := &lossGraph{
		net:   net,
		batch: batch,
		advantages: G.NewVector(
			g,
			tensor.Float64,
			G.WithShape(batch),
			G.WithName("advantages"),
			G.WithInit(G.Zeroes()),
		),
		oldLogProbs: G.NewVector(
			g,
			tensor.Float64,
			G.WithShape(batch),
			G.WithName("oldLogProbs"),
			G.WithInit(G.Zeroes()),
		),
		returns: G.NewVector(
			g,
			tensor.Float64,
			G.WithShape(batch),
			G.WithName("lambdaReturns"),
			G.WithInit(G.Zeroes()),
		),
		clipMin: G.NewScalar(
			g,
			tensor.Float64,
			G.WithName("clipMin"),
			G.WithValue(0.8),
		),
		clipMax: G.NewScalar(
			g,
			tensor.Float64,
			G.WithName("clipMax"),
			G.WithValue(1.2),
		),
	}

	// Clipped surrogate objective. Both the unclipped and clipped
	// terms are negated before the elementwise max so that minimizing
	// the result maximizes the pessimistic surrogate.
	ratio := G.Must(G.Exp(G.Must(G.Sub(net.LogProb(), l.oldLogProbs))))
	unclipped := G.Must(G.Neg(G.Must(G.HadamardProd(ratio, l.advantages))))

	clipped, err := op.Clip(ratio, l.clipMin, l.clipMax)
	if err != nil {
		return nil, fmt.Errorf("newlossgraph: could not clip ratios: %v",
			err)
	}
	clipped = G.Must(G.Neg(G.Must(G.HadamardProd(clipped, l.advantages))))

	pessimistic, err := op.Max(unclipped, clipped)
	if err != nil {
		return nil, fmt.Errorf("newlossgraph: could not take pessimistic "+
			"surrogate: %v", err)
	}
	policyLoss := G.Must(G.Mean(pessimistic))

	// Critic mean squared error against the λ-returns
	valueErr := G.Must(G.Sub(net.Value(), l.returns))
	valueLoss := G.Must(G.Mean(G.Must(G.Square(valueErr))))

	entropy := G.Must(G.Mean(net.Entropy()))

	total := G.Must(G.Add(
		policyLoss,
		G.Must(G.Mul(G.NewConstant(valueCoef), valueLoss)),
	))
	total = G.Must(G.Sub(
		total,
		G.Must(G.Mul(G.NewConstant(entropyCoef), entropy)),
	))

	G.Read(policyLoss, &l.policyLossVal)
	G.Read(valueLoss, &l.valueLossVal)
	G.Read(entropy, &l.entropyVal)
	G.Read(total, &l.totalVal)

	if _, err := G.Grad(total, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newlossgraph: could not compute "+
			"gradient: %v", err)
	}

	l.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))
	return l, nil
}

// setClipRange assigns the probability ratio clipping range [1 - ε,
// 1 + ε].
func (l *lossGraph) setClipRange(epsilon float64) error {
	if err := G.Let(l.clipMin, 1.0-epsilon); err != nil {
		return fmt.Errorf("setcliprange: could not set lower bound: %v", err)
	}
	if err := G.Let(l.clipMax, 1.0+epsilon); err != nil {
		return fmt.Errorf("setcliprange: could not set upper bound: %v", err)
	}
	return nil
}

// setTargets assigns the minibatch's advantage, behaviour
// log-probability, and λ-return placeholders.
func (l *lossGraph) setTargets(advantages, oldLogProbs,
	returns []float64) error {
	for name, data := range map[string][]float64{
		"advantages":  advantages,
		"oldLogProbs": oldLogProbs,
		"returns":     returns,
	} {
		if len(data) != l.batch {
			return fmt.Errorf("settargets: illegal %v length \n\twant(%v)"+
				"\n\thave(%v)", name, l.batch, len(data))
		}
	}

	targets := map[*G.Node][]float64{
		l.advantages:  advantages,
		l.oldLogProbs: oldLogProbs,
		l.returns:     returns,
	}
	for node, data := range targets {
		backing := tensor.New(
			tensor.WithBacking(data),
			tensor.WithShape(l.batch),
		)
		if err := G.Let(node, backing); err != nil {
			return fmt.Errorf("settargets: could not set %v: %v",
				node.Name(), err)
		}
	}
	return nil
}

// run computes the losses and gradients of the currently assigned
// minibatch. The caller steps the solver afterwards.
func (l *lossGraph) run() (Losses, error) {
	if err := l.vm.RunAll(); err != nil {
		return Losses{}, fmt.Errorf("run: could not run loss graph: %v", err)
	}

	losses := Losses{
		Policy:  l.policyLossVal.Data().(float64),
		Value:   l.valueLossVal.Data().(float64),
		Entropy: l.entropyVal.Data().(float64),
		Total:   l.totalVal.Data().(float64),
	}
	l.vm.Reset()
	return losses, nil
}

// close releases the virtual machine.
func (l *lossGraph) close() error {
	return l.vm.Close()
}
