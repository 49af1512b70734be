package initwfn

import G "gorgonia.org/gorgonia"

// GlorotUConfig describes a configuration of the Glorot uniform
// initialization algorithm.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of initializer the configuration describes
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the described initializer as a Gorgonia InitWFn
func (g GlorotUConfig) Create() G.InitWFn {
	return G.GlorotU(g.Gain)
}

// GlorotNConfig describes a configuration of the Glorot normal
// initialization algorithm.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type returns the type of initializer the configuration describes
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the described initializer as a Gorgonia InitWFn
func (g GlorotNConfig) Create() G.InitWFn {
	return G.GlorotN(g.Gain)
}
