package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LayerSpec describes one dense layer of a network under construction.
type LayerSpec struct {
	Units      int
	Activation Activation
}

// Sequential is an ordered stack of dense layers. It is read-only after
// construction and safe for concurrent Forward calls.
type Sequential struct {
	name   string
	layers []*Dense
}

// NewSequential chains layers, checking that adjacent widths agree.
func NewSequential(name string, layers ...*Dense) (*Sequential, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: network %q has no layers", ErrShapeMismatch, name)
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].In() != layers[i-1].Out() {
			return nil, fmt.Errorf("%w: network %q layer %d expects %d inputs, previous emits %d",
				ErrShapeMismatch, name, i, layers[i].In(), layers[i-1].Out())
		}
	}
	return &Sequential{name: name, layers: layers}, nil
}

// Build creates a network with inputWidth inputs from specs, seeding
// every weight from seed so identical arguments give identical networks.
func Build(name string, inputWidth int, specs []LayerSpec, seed int64) (*Sequential, error) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic init, not security sensitive
	layers := make([]*Dense, 0, len(specs))
	in := inputWidth
	for _, s := range specs {
		d, err := NewDense(in, s.Units, s.Activation, rng)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		layers = append(layers, d)
		in = s.Units
	}
	return NewSequential(name, layers...)
}

// Name returns the network name.
func (s *Sequential) Name() string { return s.name }

// InputWidth returns the width of the first layer.
func (s *Sequential) InputWidth() int { return s.layers[0].In() }

// OutputWidth returns the width of the last layer.
func (s *Sequential) OutputWidth() int { return s.layers[len(s.layers)-1].Out() }

// Layers returns the number of layers.
func (s *Sequential) Layers() int { return len(s.layers) }

// Forward runs x through every layer.
func (s *Sequential) Forward(x []float64) ([]float64, error) {
	if len(x) != s.InputWidth() {
		return nil, fmt.Errorf("%w: %s expects %d inputs, got %d", ErrShapeMismatch, s.name, s.InputWidth(), len(x))
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s input is not finite", ErrInvalidInput, s.name)
		}
	}

	h := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for _, l := range s.layers {
		var err error
		if h, err = l.Forward(h); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return append([]float64(nil), h.RawVector().Data...), nil
}
