// Package optim implements the optimizers used by the training engine.
//
// Optimizers read gradients accumulated on nn.Parameter by a backward pass
// and update the parameter tensors in place:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//	for _, batch := range batches {
//	    opt.ZeroGrad()
//	    out := loss.Forward(model.Forward(batch.X), batch.Y)
//	    model.Backward(out.Grad)
//	    opt.Step()
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	nn.OptimizerState

	// Step applies one update using the parameters' current gradients.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// SetLR updates the learning rate.
	SetLR(lr float32)
}

// New builds an optimizer by name ("sgd" or "adam", case-insensitive).
func New(name string, params []*nn.Parameter, lr float32) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr}), nil
	case "sgd-momentum":
		return NewSGD(params, SGDConfig{LR: lr, Momentum: 0.9}), nil
	case "adam", "":
		return NewAdam(params, AdamConfig{LR: lr}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// loadBuffers restores per-parameter buffers saved as "<prefix>.<index>".
func loadBuffers(params []*nn.Parameter, stateDict map[string]*tensor.RawTensor, prefix string) (map[*nn.Parameter][]float32, error) {
	out := make(map[*nn.Parameter][]float32)
	for i, p := range params {
		raw, ok := stateDict[fmt.Sprintf("%s.%d", prefix, i)]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return nil, fmt.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
				prefix, i, p.Tensor().Shape(), raw.Shape())
		}
		buf := make([]float32, raw.NumElements())
		copy(buf, raw.AsFloat32())
		out[p] = buf
	}
	return out, nil
}

// saveBuffers exports per-parameter buffers as "<prefix>.<index>".
func saveBuffers(params []*nn.Parameter, buffers map[*nn.Parameter][]float32, prefix string, into map[string]*tensor.RawTensor) {
	for i, p := range params {
		buf, ok := buffers[p]
		if !ok {
			continue
		}
		raw, err := tensor.FromFloat32(buf, p.Tensor().Shape())
		if err != nil {
			panic(err)
		}
		into[fmt.Sprintf("%s.%d", prefix, i)] = raw
	}
}
