package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LayerSnapshot is the serializable form of a Dense layer.
// Weights are row-major with Out rows and In columns.
type LayerSnapshot struct {
	In         int        `json:"in"`
	Out        int        `json:"out"`
	Activation Activation `json:"activation"`
	Weights    []float64  `json:"weights"`
	Bias       []float64  `json:"bias"`
}

// Snapshot is the serializable form of a Sequential network.
type Snapshot struct {
	Name   string          `json:"name"`
	Layers []LayerSnapshot `json:"layers"`
}

// Snapshot copies the network weights.
func (s *Sequential) Snapshot() Snapshot {
	snap := Snapshot{Name: s.name, Layers: make([]LayerSnapshot, 0, len(s.layers))}
	for _, l := range s.layers {
		w := mat.DenseCopyOf(l.weights)
		b := mat.VecDenseCopyOf(l.bias)
		snap.Layers = append(snap.Layers, LayerSnapshot{
			In:         l.In(),
			Out:        l.Out(),
			Activation: l.activation,
			Weights:    append([]float64(nil), w.RawMatrix().Data...),
			Bias:       append([]float64(nil), b.RawVector().Data...),
		})
	}
	return snap
}

// FromSnapshot rebuilds a network, validating every dimension.
func FromSnapshot(snap Snapshot) (*Sequential, error) {
	layers := make([]*Dense, 0, len(snap.Layers))
	for i, ls := range snap.Layers {
		if ls.In <= 0 || ls.Out <= 0 || len(ls.Weights) != ls.In*ls.Out || len(ls.Bias) != ls.Out {
			return nil, fmt.Errorf("%w: %s layer %d is %dx%d with %d weights and %d biases",
				ErrCorruptSnapshot, snap.Name, i, ls.Out, ls.In, len(ls.Weights), len(ls.Bias))
		}
		if !ls.Activation.valid() {
			return nil, fmt.Errorf("%w: %s layer %d activation %q", ErrCorruptSnapshot, snap.Name, i, ls.Activation)
		}
		layers = append(layers, &Dense{
			weights:    mat.NewDense(ls.Out, ls.In, append([]float64(nil), ls.Weights...)),
			bias:       mat.NewVecDense(ls.Out, append([]float64(nil), ls.Bias...)),
			activation: ls.Activation,
		})
	}
	return NewSequential(snap.Name, layers...)
}
