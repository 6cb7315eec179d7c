package nn

import (
	"github.com/born-ml/trainer/internal/tensor"
)

// Parameter is a trainable float32 tensor with its accumulated gradient.
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
	grad   *tensor.RawTensor // nil until the first backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before any backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad replaces the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// gradBuffer returns the gradient storage, allocating zeros on first use.
func (p *Parameter) gradBuffer() []float32 {
	if p.grad == nil {
		p.grad = tensor.MustRaw(p.tensor.Shape(), tensor.Float32)
	}
	return p.grad.AsFloat32()
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	if p.grad == nil {
		return
	}
	clear(p.grad.AsFloat32())
}
