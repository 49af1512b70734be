// Package rollout implements fixed-horizon experience collection for
// on-policy training.
package rollout

import (
	"fmt"

	"github.com/gorl/ppo/timestep"
)

// Buffer accumulates the timesteps of a single fixed-horizon rollout.
// Unlike a replay buffer, it never overwrites: it must be drained in
// full once the horizon is reached, and a drain empties it for the next
// rollout.
type Buffer struct {
	horizon int
	batches []timestep.Batch
}

// NewBuffer returns an empty Buffer for rollouts of the given horizon.
func NewBuffer(horizon int) (*Buffer, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("newbuffer: horizon must be positive, "+
			"got %v", horizon)
	}
	return &Buffer{
		horizon: horizon,
		batches: make([]timestep.Batch, 0, horizon),
	}, nil
}

// Append adds one timestep to the Buffer. Appending beyond the horizon
// is an error: the rollout the Buffer holds must be drained first.
func (b *Buffer) Append(batch timestep.Batch) error {
	if len(b.batches) >= b.horizon {
		return fmt.Errorf("append: buffer full with %v timesteps",
			b.horizon)
	}
	b.batches = append(b.batches, batch)
	return nil
}

// Len returns the number of timesteps currently held.
func (b *Buffer) Len() int {
	return len(b.batches)
}

// Drain returns the buffered rollout and empties the Buffer. Draining
// anything other than a complete rollout is an error.
func (b *Buffer) Drain() ([]timestep.Batch, error) {
	if len(b.batches) != b.horizon {
		return nil, fmt.Errorf("drain: buffer holds %v of %v timesteps",
			len(b.batches), b.horizon)
	}
	batches := b.batches
	b.batches = make([]timestep.Batch, 0, b.horizon)
	return batches, nil
}
