// Package gae implements truncated generalized advantage estimation -
// GAE(λ) - over batched rollouts following
// https://arxiv.org/abs/1506.02438.
package gae

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Estimate computes GAE(λ) advantages for a rollout of parallel
// workers. The rewards and dones matrices have shape
// [workers, horizon]; values has shape [workers, horizon+1], its final
// column holding the bootstrap value that closes the truncated
// recursion. dones[w][t] must be 1 exactly when the environment
// terminated during step t for worker w, and 0 otherwise.
//
// For each worker, the temporal-difference residual is
//
//	δ[t] = r[t] + γ·(1-d[t])·v[t+1] - v[t]
//
// and advantages follow the backward recursion
//
//	A[horizon-1] = δ[horizon-1]
//	A[t] = δ[t] + γ·λ·(1-d[t])·A[t+1]
//
// The non-terminal mask zeroes bootstrapped contributions across
// episode boundaries. The returned matrix has shape [workers, horizon].
func Estimate(discount, lambda float64, rewards, values,
	dones *mat.Dense) (*mat.Dense, error) {
	workers, horizon := rewards.Dims()

	if r, c := dones.Dims(); r != workers || c != horizon {
		return nil, fmt.Errorf("estimate: illegal dones shape "+
			"\n\twant(%v x %v)\n\thave(%v x %v)", workers, horizon, r, c)
	}
	if r, c := values.Dims(); r != workers || c != horizon+1 {
		return nil, fmt.Errorf("estimate: illegal values shape "+
			"\n\twant(%v x %v)\n\thave(%v x %v)", workers, horizon+1, r, c)
	}

	advantages := mat.NewDense(workers, horizon, nil)
	for w := 0; w < workers; w++ {
		rews := rewards.RawRowView(w)
		vals := values.RawRowView(w)
		done := dones.RawRowView(w)
		adv := advantages.RawRowView(w)

		next := 0.0
		for t := horizon - 1; t >= 0; t-- {
			nonTerminal := 1.0 - done[t]
			delta := rews[t] + discount*nonTerminal*vals[t+1] - vals[t]
			adv[t] = delta + discount*lambda*nonTerminal*next
			next = adv[t]
		}
	}

	return advantages, nil
}

// Returns computes the value-function regression targets
// returns = advantages + values[:, :horizon], where values includes the
// bootstrap column that Returns ignores.
func Returns(advantages, values *mat.Dense) (*mat.Dense, error) {
	workers, horizon := advantages.Dims()
	if r, c := values.Dims(); r != workers || c != horizon+1 {
		return nil, fmt.Errorf("returns: illegal values shape "+
			"\n\twant(%v x %v)\n\thave(%v x %v)", workers, horizon+1, r, c)
	}

	returns := mat.NewDense(workers, horizon, nil)
	for w := 0; w < workers; w++ {
		adv := advantages.RawRowView(w)
		vals := values.RawRowView(w)
		ret := returns.RawRowView(w)
		for t := 0; t < horizon; t++ {
			ret[t] = adv[t] + vals[t]
		}
	}

	return returns, nil
}
