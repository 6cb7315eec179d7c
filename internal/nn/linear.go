package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/trainer/internal/parallel"
	"github.com/born-ml/trainer/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b.
//
//   - x has shape [batch_size, in_features]
//   - W has shape [out_features, in_features]
//   - b has shape [out_features]
//
// Weights use Xavier initialization and biases start at zero. A Linear built
// with NewLazyLinear learns in_features from its first input.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
	rng         *rand.Rand
	par         parallel.Config

	input *tensor.RawTensor // cached by Forward for Backward
}

// NewLinear creates a Linear layer with known input width.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	l := &Linear{outFeatures: outFeatures, rng: rng, par: parallel.Sequential()}
	l.materialize(inFeatures)
	return l
}

// NewLazyLinear creates a Linear layer whose input width is taken from the
// first Forward call.
func NewLazyLinear(outFeatures int, rng *rand.Rand) *Linear {
	return &Linear{outFeatures: outFeatures, rng: rng, par: parallel.Sequential()}
}

func (l *Linear) materialize(inFeatures int) {
	l.inFeatures = inFeatures
	l.weight = NewParameter("weight", Xavier(inFeatures, l.outFeatures, l.rng))
	l.bias = NewParameter("bias", Zeros(tensor.Shape{l.outFeatures}))
}

// Initialized reports whether the weights exist.
func (l *Linear) Initialized() bool {
	return l.weight != nil
}

// SetParallel sets the worker configuration for Forward and Backward.
func (l *Linear) SetParallel(cfg parallel.Config) {
	l.par = cfg
}

// InFeatures returns the input width, or 0 for an uninitialized lazy layer.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if !l.Initialized() {
		l.materialize(shape[1])
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	batch := shape[0]
	out := tensor.MustRaw(tensor.Shape{batch, l.outFeatures}, tensor.Float32)
	w := l.weight.Tensor().AsFloat32()
	b := l.bias.Tensor().AsFloat32()

	parallel.For(batch, func(r int) {
		x := input.Row(r)
		y := out.Row(r)
		for o := range l.outFeatures {
			row := w[o*l.inFeatures : (o+1)*l.inFeatures]
			sum := b[o]
			for i, xv := range x {
				sum += xv * row[i]
			}
			y[o] = sum
		}
	}, l.par)

	l.input = input
	return out
}

// Backward accumulates dW = g.T @ x and db = sum(g) and returns g @ W.
func (l *Linear) Backward(gradOutput *tensor.RawTensor) *tensor.RawTensor {
	if l.input == nil {
		panic("Linear.Backward: called before Forward")
	}
	batch := l.input.Shape().Rows()
	w := l.weight.Tensor().AsFloat32()
	dw := l.weight.gradBuffer()
	db := l.bias.gradBuffer()

	// Each worker owns one output unit: row o of dW and db[o].
	parallel.For(l.outFeatures, func(o int) {
		dwRow := dw[o*l.inFeatures : (o+1)*l.inFeatures]
		for r := range batch {
			g := gradOutput.Row(r)[o]
			if g == 0 {
				continue
			}
			x := l.input.Row(r)
			for i, xv := range x {
				dwRow[i] += g * xv
			}
			db[o] += g
		}
	}, l.par)

	gradInput := tensor.MustRaw(tensor.Shape{batch, l.inFeatures}, tensor.Float32)
	parallel.For(batch, func(r int) {
		g := gradOutput.Row(r)
		dx := gradInput.Row(r)
		for o, gv := range g {
			row := w[o*l.inFeatures : (o+1)*l.inFeatures]
			for i, wv := range row {
				dx[i] += gv * wv
			}
		}
	}, l.par)

	return gradInput
}

// Parameters returns [weight, bias], or nothing before lazy initialization.
func (l *Linear) Parameters() []*Parameter {
	if !l.Initialized() {
		return nil
	}
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// StateDict returns {"weight", "bias"}.
func (l *Linear) StateDict() map[string]*tensor.RawTensor {
	if !l.Initialized() {
		return map[string]*tensor.RawTensor{}
	}
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}

// LoadStateDict copies weight and bias in, materializing a lazy layer from
// the stored weight shape.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weight, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing parameter %q", "weight")
	}
	bias, ok := stateDict["bias"]
	if !ok {
		return fmt.Errorf("missing parameter %q", "bias")
	}

	wShape := weight.Shape()
	if len(wShape) != 2 || wShape[0] != l.outFeatures {
		return fmt.Errorf("weight shape %v does not match out_features %d", wShape, l.outFeatures)
	}
	if !l.Initialized() {
		l.materialize(wShape[1])
	}

	if err := l.weight.Tensor().CopyFrom(weight); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if err := l.bias.Tensor().CopyFrom(bias); err != nil {
		return fmt.Errorf("bias: %w", err)
	}
	return nil
}
