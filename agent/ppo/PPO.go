// Package ppo implements the Proximal Policy Optimization algorithm
// with truncated generalized advantage estimation for vectorized
// environments.
//
// Each training iteration collects a fixed-horizon rollout from every
// parallel environment, estimates advantages with GAE(λ), and then fits
// the actor-critic network for several epochs of clipped surrogate
// updates over minibatches of the rollout.
package ppo

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gorl/ppo/driver"
	"github.com/gorl/ppo/gae"
	"github.com/gorl/ppo/metrics"
	"github.com/gorl/ppo/minibatch"
	"github.com/gorl/ppo/network"
	"github.com/gorl/ppo/policy"
	"github.com/gorl/ppo/rollout"
	"github.com/gorl/ppo/solver"
	"github.com/gorl/ppo/utils/progressbar"
)

// NormEpsilon is added to the advantage standard deviation when
// normalizing, so that a zero-variance minibatch stays finite.
const NormEpsilon float64 = 1e-8

// Renderer visualizes the experience of a collection cycle. Rendering
// runs between collection and fitting, so the drawn trajectories are
// exactly what the next gradient steps train on.
type Renderer interface {
	Render(exp *rollout.Experience) error
}

// PPO implements the Proximal Policy Optimization agent.
type PPO struct {
	config    Config
	collector *rollout.Collector
	net       network.ActorCritic
	solver    *solver.Solver
	loss      *lossGraph

	episodes *metrics.Episodes
	trackers []metrics.Tracker
	renderer Renderer
	rng      *rand.Rand

	// Recurrent state at the start of the next collection; nil for
	// stateless networks.
	state policy.State

	lastLosses Losses
}

// New returns a new PPO agent collecting experience through d and
// training net with sol. The network's training surface must be sized
// for c.BatchSize() samples. Trackers, if any, record the returns and
// lengths of completed episodes and are saved when Train finishes.
func New(d driver.Driver, net network.ActorCritic, sol *solver.Solver,
	c Config, trackers ...metrics.Tracker) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid configuration: %v", err)
	}

	collector, err := rollout.NewCollector(d, net, c.Workers, c.Horizon,
		c.Features)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	loss, err := newLossGraph(net, c.BatchSize(), c.ValueCoef, c.EntropyCoef)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &PPO{
		config:    c,
		collector: collector,
		net:       net,
		solver:    sol,
		loss:      loss,
		episodes:  metrics.NewEpisodes(c.Workers),
		trackers:  trackers,
		rng:       rand.New(rand.NewSource(c.Seed)),
		state:     net.InitialState(c.Workers),
	}, nil
}

// Train runs the given number of collect-then-fit iterations and saves
// the agent's trackers.
func (p *PPO) Train(collections int) error {
	if collections <= 0 {
		return fmt.Errorf("train: collections must be positive, got %v",
			collections)
	}

	var pbar *progressbar.ProgressBar
	if p.config.ShowProgress {
		pbar = progressbar.NewProgressBar(65, collections, time.Second, false)
		pbar.Display()
		defer pbar.Close()
	}

	for k := 0; k < collections; k++ {
		if err := p.step(k, collections); err != nil {
			return fmt.Errorf("train: collection %v: %v", k, err)
		}
		if pbar != nil {
			pbar.Increment()
		}
	}

	for _, tracker := range p.trackers {
		if err := tracker.Save(); err != nil {
			return fmt.Errorf("train: could not save tracker: %v", err)
		}
	}
	return nil
}

// Losses returns the loss terms of the most recent gradient step.
func (p *PPO) Losses() Losses {
	return p.lastLosses
}

// SetRenderer installs the renderer that Train invokes on each
// collection when the configuration's Render flag is set.
func (p *PPO) SetRenderer(r Renderer) {
	p.renderer = r
}

// step performs one collect-then-fit iteration.
func (p *PPO) step(k, collections int) error {
	exp, err := p.collector.Collect(p.state)
	if err != nil {
		return err
	}

	if p.config.Render && p.renderer != nil {
		if err := p.renderer.Render(exp); err != nil {
			return fmt.Errorf("step: could not render experience: %v", err)
		}
	}

	returns, lengths, err := p.episodes.Record(exp.Rewards, exp.Dones)
	if err != nil {
		return err
	}
	for _, tracker := range p.trackers {
		tracker.Track(returns, lengths)
	}

	advantages, err := gae.Estimate(p.config.Discount, p.config.Lambda,
		exp.Rewards, exp.Values, exp.Dones)
	if err != nil {
		return err
	}
	lambdaReturns, err := gae.Returns(advantages, exp.Values)
	if err != nil {
		return err
	}

	if err := p.loss.setClipRange(p.epsilon(k, collections)); err != nil {
		return err
	}

	// One partition of the rollout serves every epoch
	groups, err := minibatch.Indices(p.config.Horizon, p.config.NumMinibatch,
		p.config.Workers, p.config.PreserveOrder, p.rng)
	if err != nil {
		return err
	}

	for epoch := 0; epoch < p.config.Epochs; epoch++ {
		for _, ids := range groups {
			if err := p.fit(exp, advantages, lambdaReturns, ids); err != nil {
				return err
			}
		}
	}

	if err := p.net.Refresh(); err != nil {
		return err
	}

	state, err := p.recomputeState(exp)
	if err != nil {
		return err
	}
	p.state = state
	return nil
}

// fit performs a single gradient step on one minibatch.
func (p *PPO) fit(exp *rollout.Experience, advantages,
	lambdaReturns *mat.Dense, ids [][]int) error {
	obs, err := exp.GatherObs(ids)
	if err != nil {
		return err
	}
	actions := rollout.Gather(exp.Actions, ids)
	dones := rollout.Gather(exp.Dones, ids)
	oldLogProbs := rollout.Gather(exp.LogProbs, ids)

	adv := rollout.Gather(advantages, ids)
	normalize(adv)
	rets := rollout.Gather(lambdaReturns, ids)

	if err := p.net.SetInputs(obs, dones, actions, exp.StartState); err != nil {
		return err
	}
	if err := p.loss.setTargets(adv, oldLogProbs, rets); err != nil {
		return err
	}

	losses, err := p.loss.run()
	if err != nil {
		return err
	}
	p.lastLosses = losses

	if err := p.solver.Step(p.net.Model()); err != nil {
		return fmt.Errorf("fit: could not step solver: %v", err)
	}
	return nil
}

// recomputeState rebuilds the recurrent state the next collection
// starts from, replaying the tail of each worker's trajectory through
// the freshly updated weights. Workers whose episode boundary coincides
// with the collection boundary get a fresh state with nothing to
// replay.
func (p *PPO) recomputeState(exp *rollout.Experience) (policy.State, error) {
	if exp.FinalState == nil {
		return nil, nil
	}

	steps, err := policy.StepsSinceReset(exp.FinalState)
	if err != nil {
		return nil, fmt.Errorf("recomputestate: %v", err)
	}

	perWorker := make([]policy.State, p.config.Workers)
	noReset := []float64{0.0}
	for w := 0; w < p.config.Workers; w++ {
		s := p.net.InitialState(1)

		replay := steps[w]
		if replay > p.config.Horizon {
			replay = p.config.Horizon
		}
		for t := p.config.Horizon - replay; t < p.config.Horizon; t++ {
			pred, err := p.net.Predict(exp.WorkerObs(w, t), noReset, s, true)
			if err != nil {
				return nil, fmt.Errorf("recomputestate: worker %v: %v", w,
					err)
			}
			s = pred.State
		}
		perWorker[w] = s
	}

	stacked, err := policy.Stack(perWorker)
	if err != nil {
		return nil, fmt.Errorf("recomputestate: %v", err)
	}
	return stacked, nil
}

// epsilon returns the ratio clipping range of collection k: the
// configured schedule when one is set, otherwise a linear interpolation
// over the training run.
func (p *PPO) epsilon(k, collections int) float64 {
	if p.config.EpsilonSchedule != nil {
		return p.config.EpsilonSchedule()
	}
	if collections <= 1 {
		return p.config.EpsilonStart
	}
	frac := float64(k) / float64(collections-1)
	return p.config.EpsilonStart +
		frac*(p.config.EpsilonEnd-p.config.EpsilonStart)
}

// normalize standardizes a minibatch of advantages in place.
func normalize(advantages []float64) {
	mean := stat.Mean(advantages, nil)
	std := stat.PopStdDev(advantages, nil)
	for i := range advantages {
		advantages[i] = (advantages[i] - mean) / (std + NormEpsilon)
	}
}
