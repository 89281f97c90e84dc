// Package nn implements the small feed-forward networks used for visitor
// fingerprinting and anomaly scoring: dense layers, sequential stacks,
// seeded initialization and weight snapshots.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation names an element-wise activation function.
type Activation string

// Supported activations.
const (
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Linear  Activation = "linear"
)

func (a Activation) apply(x float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, x)
	case Sigmoid:
		return 1 / (1 + math.Exp(-x))
	default:
		return x
	}
}

func (a Activation) valid() bool {
	return a == ReLU || a == Sigmoid || a == Linear
}

// Dense is a fully connected layer computing act(W·x + b).
type Dense struct {
	weights    *mat.Dense    // out x in
	bias       *mat.VecDense // out
	activation Activation
}

// NewDense creates a layer with Glorot-normal weights drawn from rng and zero bias.
func NewDense(in, out int, act Activation, rng *rand.Rand) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: dense %dx%d", ErrShapeMismatch, in, out)
	}
	if !act.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, act)
	}

	// Truncated normal at two standard deviations, rescaled so the
	// resulting variance matches 2/(fan_in+fan_out).
	stddev := math.Sqrt(2/float64(in+out)) / 0.87962566103423978
	data := make([]float64, in*out)
	for i := range data {
		for {
			x := rng.NormFloat64()
			if math.Abs(x) <= 2 {
				data[i] = x * stddev
				break
			}
		}
	}

	return &Dense{
		weights:    mat.NewDense(out, in, data),
		bias:       mat.NewVecDense(out, nil),
		activation: act,
	}, nil
}

// In returns the input width.
func (d *Dense) In() int {
	_, c := d.weights.Dims()
	return c
}

// Out returns the output width.
func (d *Dense) Out() int {
	r, _ := d.weights.Dims()
	return r
}

// Activation returns the layer activation.
func (d *Dense) Activation() Activation { return d.activation }

// Forward applies the layer to x.
func (d *Dense) Forward(x *mat.VecDense) (*mat.VecDense, error) {
	if x.Len() != d.In() {
		return nil, fmt.Errorf("%w: layer expects %d inputs, got %d", ErrShapeMismatch, d.In(), x.Len())
	}
	out := mat.NewVecDense(d.Out(), nil)
	out.MulVec(d.weights, x)
	out.AddVec(out, d.bias)
	for i := 0; i < out.Len(); i++ {
		out.SetVec(i, d.activation.apply(out.AtVec(i)))
	}
	return out, nil
}
