package optim

import (
	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
//	velocity = momentum * velocity + gradient
//	param    = param - lr * velocity
//
// With zero momentum the update is param -= lr * gradient.
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // default 0.01
	Momentum float32 // default 0, range [0, 1)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float32),
	}
}

// Name returns "SGD".
func (s *SGD) Name() string {
	return "SGD"
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	for _, p := range s.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		g := grad.AsFloat32()
		w := p.Tensor().AsFloat32()

		if s.momentum == 0 {
			for i := range w {
				w[i] -= s.lr * g[i]
			}
			continue
		}

		v, ok := s.velocities[p]
		if !ok {
			v = make([]float32, len(w))
			s.velocities[p] = v
		}
		for i := range w {
			v[i] = s.momentum*v[i] + g[i]
			w[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// StateDict exports velocity buffers as "velocity.<param index>". Without
// momentum the state is empty.
func (s *SGD) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return state
	}
	saveBuffers(s.params, s.velocities, "velocity", state)
	return state
}

// LoadStateDict restores velocity buffers.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	v, err := loadBuffers(s.params, stateDict, "velocity")
	if err != nil {
		return err
	}
	s.velocities = v
	return nil
}
