package optim

import (
	"math"

	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/tensor"
)

// Adam implements Adaptive Moment Estimation (Kingma & Ba, 2014).
//
//	m_t   = beta1 * m_{t-1} + (1-beta1) * g
//	v_t   = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int // timestep for bias correction
	m      map[*nn.Parameter][]float32
	v      map[*nn.Parameter][]float32
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // default 0.001
	Betas [2]float32 // default [0.9, 0.999]
	Eps   float32    // default 1e-8
}

// NewAdam creates a new Adam optimizer.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter][]float32),
		v:      make(map[*nn.Parameter][]float32),
	}
}

// Name returns "Adam".
func (a *Adam) Name() string {
	return "Adam"
}

// Step performs a single Adam update.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - math.Pow(float64(a.beta1), float64(a.t))
	bc2 := 1 - math.Pow(float64(a.beta2), float64(a.t))

	for _, p := range a.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		g := grad.AsFloat32()
		w := p.Tensor().AsFloat32()

		m, ok := a.m[p]
		if !ok {
			m = make([]float32, len(w))
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float32, len(w))
			a.v[p] = v
		}

		for i := range w {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			mHat := float64(m[i]) / bc1
			vHat := float64(v[i]) / bc2
			w[i] -= float32(float64(a.lr) * mHat / (math.Sqrt(vHat) + float64(a.eps)))
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// StepCount returns the number of updates applied so far.
func (a *Adam) StepCount() int {
	return a.t
}

// StateDict exports "m.<i>", "v.<i>" and the timestep "t".
func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	saveBuffers(a.params, a.m, "m", state)
	saveBuffers(a.params, a.v, "v", state)

	t := tensor.MustRaw(tensor.Shape{1}, tensor.Int64)
	t.AsInt64()[0] = int64(a.t)
	state["t"] = t
	return state
}

// LoadStateDict restores moment buffers and the timestep.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	m, err := loadBuffers(a.params, stateDict, "m")
	if err != nil {
		return err
	}
	v, err := loadBuffers(a.params, stateDict, "v")
	if err != nil {
		return err
	}
	a.m, a.v, a.t = m, v, 0
	if t, ok := stateDict["t"]; ok && t.DType() == tensor.Int64 {
		a.t = int(t.AsInt64()[0])
	}
	return nil
}
