// Package minibatch partitions a fixed-horizon rollout into per-worker
// minibatch index groups for multi-epoch optimization.
package minibatch

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Indices returns numMinibatch index groups over a rollout of the given
// horizon. Group g maps each worker to a flat list of time indices
// drawn from [0, horizon): the horizon is tiled into equal contiguous
// chunks of size horizon/numMinibatch per worker, and group g collects
// chunk g from every worker.
//
// When preserveOrder is false each worker's indices are independently
// permuted before chunking, decorrelating temporal order for
// non-recurrent optimization. When true, indices keep their original
// temporal order so recurrent state remains valid within a chunk.
//
// numMinibatch must evenly divide horizon.
func Indices(horizon, numMinibatch, workers int, preserveOrder bool,
	rng *rand.Rand) ([][][]int, error) {
	if numMinibatch <= 0 || horizon%numMinibatch != 0 {
		return nil, fmt.Errorf("indices: %v minibatches cannot evenly tile "+
			"a horizon of %v steps", numMinibatch, horizon)
	}
	step := horizon / numMinibatch

	groups := make([][][]int, numMinibatch)
	for g := range groups {
		groups[g] = make([][]int, workers)
	}

	for w := 0; w < workers; w++ {
		ids := make([]int, horizon)
		for i := range ids {
			ids[i] = i
		}
		if !preserveOrder {
			rng.Shuffle(len(ids), func(i, j int) {
				ids[i], ids[j] = ids[j], ids[i]
			})
		}
		for g := 0; g < numMinibatch; g++ {
			groups[g][w] = ids[g*step : (g+1)*step]
		}
	}

	return groups, nil
}
