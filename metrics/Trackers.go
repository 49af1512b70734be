package metrics

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Tracker tracks data about completed episodes and saves it to disk
// when an experiment finishes.
type Tracker interface {
	Track(returns []float64, lengths []int)
	Save() error
}

// Return tracks and saves the episodic returns seen during training.
type Return struct {
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker which will save
// its data at the specified location filename
func NewReturn(filename string) Tracker {
	return &Return{filename: filename}
}

// Track caches the returns of episodes completed during a rollout
func (r *Return) Track(returns []float64, lengths []int) {
	r.episodeReturns = append(r.episodeReturns, returns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not encode return data: %v", err)
	}
	return nil
}

// EpisodeLength tracks and saves the lengths of episodes completed
// during training.
type EpisodeLength struct {
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength saver which will save
// its data at the specified location filename
func NewEpisodeLength(filename string) Tracker {
	return &EpisodeLength{filename: filename}
}

// Track caches the lengths of episodes completed during a rollout
func (e *EpisodeLength) Track(returns []float64, lengths []int) {
	e.episodeLengths = append(e.episodeLengths, lengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	file, err := os.Create(e.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(e.episodeLengths); err != nil {
		return fmt.Errorf("save: could not encode episode length data: %v",
			err)
	}
	return nil
}
