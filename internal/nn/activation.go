package nn

import (
	"github.com/born-ml/trainer/internal/tensor"
)

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU struct {
	mask []bool
}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU.
func (r *ReLU) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	out := input.Clone()
	data := out.AsFloat32()
	r.mask = make([]bool, len(data))
	for i, v := range data {
		if v > 0 {
			r.mask[i] = true
			continue
		}
		data[i] = 0
	}
	return out
}

// Backward passes gradients through where the input was positive.
func (r *ReLU) Backward(gradOutput *tensor.RawTensor) *tensor.RawTensor {
	grad := gradOutput.Clone()
	data := grad.AsFloat32()
	for i := range data {
		if !r.mask[i] {
			data[i] = 0
		}
	}
	return grad
}

// Parameters returns nil; ReLU has no trainable parameters.
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map.
func (r *ReLU) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (r *ReLU) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}
