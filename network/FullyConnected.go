package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer returns a fully connected layer on graph g mapping in
// features to out features. The bias is broadcast along the batch
// dimension during the forward pass.
func newFCLayer(g *G.ExprGraph, in, out int, init G.InitWFn,
	act *Activation, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithName(name+"B"),
		G.WithInit(G.Zeroes()),
	)

	return &fcLayer{weights: weights, bias: bias, act: act}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))
	if f.act == nil || f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// addFCLayers stacks fully connected layers on graph g. For index i,
// hiddenSizes[i] is the number of units in layer i and activations[i]
// its activation function.
func addFCLayers(g *G.ExprGraph, features int, hiddenSizes []int,
	activations []*Activation, init G.InitWFn,
	prefix string) ([]*fcLayer, error) {
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("addfclayers: invalid number of activations"+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(activations))
	}

	layers := make([]*fcLayer, len(hiddenSizes))
	in := features
	for i, out := range hiddenSizes {
		name := fmt.Sprintf("%vL%d", prefix, i)
		layers[i] = newFCLayer(g, in, out, init, activations[i], name)
		in = out
	}
	return layers, nil
}

// fwdLayers runs x through each layer in turn.
func fwdLayers(x *G.Node, layers []*fcLayer) (*G.Node, error) {
	var err error
	for i, l := range layers {
		if x, err = l.fwd(x); err != nil {
			return nil, fmt.Errorf("fwdlayers: could not compute forward "+
				"pass of layer %v: %v", i, err)
		}
	}
	return x, nil
}

// learnables collects the weight and bias nodes of each layer.
func learnables(layerGroups ...[]*fcLayer) G.Nodes {
	var nodes G.Nodes
	for _, layers := range layerGroups {
		for _, l := range layers {
			nodes = append(nodes, l.weights, l.bias)
		}
	}
	return nodes
}
