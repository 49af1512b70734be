package initwfn

import G "gorgonia.org/gorgonia"

// HeUConfig describes a configuration of the He uniform initialization
// algorithm.
type HeUConfig struct {
	Gain float64
}

// NewHeU returns a new He uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain})
}

// Type returns the type of initializer the configuration describes
func (h HeUConfig) Type() Type {
	return HeU
}

// Create returns the described initializer as a Gorgonia InitWFn
func (h HeUConfig) Create() G.InitWFn {
	return G.HeU(h.Gain)
}

// HeNConfig describes a configuration of the He normal initialization
// algorithm.
type HeNConfig struct {
	Gain float64
}

// NewHeN returns a new He normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain})
}

// Type returns the type of initializer the configuration describes
func (h HeNConfig) Type() Type {
	return HeN
}

// Create returns the described initializer as a Gorgonia InitWFn
func (h HeNConfig) Create() G.InitWFn {
	return G.HeN(h.Gain)
}
