package nn

import (
	"github.com/born-ml/trainer/internal/parallel"
	"github.com/born-ml/trainer/internal/tensor"
)

// Module is the base interface for all layers.
type Module interface {
	// Forward computes the output for a [batch, in] input.
	Forward(input *tensor.RawTensor) *tensor.RawTensor

	// Backward takes the gradient of the loss with respect to the last
	// Forward output, accumulates parameter gradients and returns the
	// gradient with respect to that Forward's input.
	Backward(gradOutput *tensor.RawTensor) *tensor.RawTensor

	// Parameters returns the trainable parameters. Uninitialized lazy
	// layers return none.
	Parameters() []*Parameter

	// StateDict exports parameters by name. The returned tensors alias the
	// live parameters.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies parameters in. Lazy layers adopt the stored
	// shapes.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Lazy is implemented by modules whose parameters are materialized on the
// first Forward call.
type Lazy interface {
	Initialized() bool
}

// ParallelAware is implemented by modules that can split their math across
// worker goroutines.
type ParallelAware interface {
	SetParallel(cfg parallel.Config)
}

// Initialized reports whether m and every lazy submodule has materialized
// its parameters.
func Initialized(m Module) bool {
	if l, ok := m.(Lazy); ok {
		return l.Initialized()
	}
	return true
}

// NumParameters counts scalar parameters.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}

// ZeroGrad clears the gradients of all parameters of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}
