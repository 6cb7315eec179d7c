package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/optim"
	"github.com/born-ml/trainer/internal/tensor"
)

func scalarParam(t *testing.T, v float32) *nn.Parameter {
	t.Helper()
	x, err := tensor.FromFloat32([]float32{v}, tensor.Shape{1})
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func setGrad(t *testing.T, p *nn.Parameter, g float32) {
	t.Helper()
	grad, err := tensor.FromFloat32([]float32{g}, tensor.Shape{1})
	require.NoError(t, err)
	p.SetGrad(grad)
}

func value(p *nn.Parameter) float32 {
	return p.Tensor().AsFloat32()[0]
}

func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalarParam(t, 2.0)
	opt := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	setGrad(t, param, 1.0)
	opt.Step()

	// x = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, value(param), 1e-6)
	assert.Empty(t, opt.StateDict())
}

func TestSGD_WithMomentum(t *testing.T) {
	param := scalarParam(t, 1.0)
	opt := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	setGrad(t, param, 1.0)
	opt.Step()
	// v_1 = 1.0, x_1 = 1.0 - 0.1
	assert.InDelta(t, 0.9, value(param), 1e-6)

	opt.Step()
	// v_2 = 0.9 + 1.0 = 1.9, x_2 = 0.9 - 0.19
	assert.InDelta(t, 0.71, value(param), 1e-5)
}

func TestSGD_SkipsParamsWithoutGrad(t *testing.T) {
	param := scalarParam(t, 3.0)
	opt := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.5})
	opt.Step()
	assert.Equal(t, float32(3.0), value(param))
}

func TestZeroGrad(t *testing.T) {
	param := scalarParam(t, 1.0)
	setGrad(t, param, 5.0)

	opt := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{})
	opt.ZeroGrad()

	require.NotNil(t, param.Grad())
	assert.Zero(t, param.Grad().AsFloat32()[0])
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	param := scalarParam(t, 1.0)
	opt := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.01})

	// With bias correction the first step is lr * g/|g|.
	setGrad(t, param, 4.0)
	opt.Step()

	assert.InDelta(t, 0.99, value(param), 1e-5)
	assert.Equal(t, 1, opt.StepCount())
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	param := scalarParam(t, 1.0)
	opt := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.01})
	setGrad(t, param, 0.5)
	opt.Step()
	opt.Step()

	state := opt.StateDict()
	require.Contains(t, state, "m.0")
	require.Contains(t, state, "v.0")
	require.Contains(t, state, "t")

	twin := scalarParam(t, value(param))
	restored := optim.NewAdam([]*nn.Parameter{twin}, optim.AdamConfig{LR: 0.01})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 2, restored.StepCount())

	setGrad(t, param, 0.5)
	setGrad(t, twin, 0.5)
	opt.Step()
	restored.Step()
	assert.InDelta(t, value(param), value(twin), 1e-7)
}

func TestSGD_LoadStateDictShapeMismatch(t *testing.T) {
	param := scalarParam(t, 1.0)
	opt := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{Momentum: 0.9})

	bad, err := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)
	assert.Error(t, opt.LoadStateDict(map[string]*tensor.RawTensor{"velocity.0": bad}))
}

func TestNew(t *testing.T) {
	params := []*nn.Parameter{scalarParam(t, 1)}

	opt, err := optim.New("SGD", params, 0.05)
	require.NoError(t, err)
	assert.Equal(t, "SGD", opt.Name())
	assert.InDelta(t, 0.05, opt.GetLR(), 1e-9)

	opt, err = optim.New("adam", params, 0)
	require.NoError(t, err)
	assert.Equal(t, "Adam", opt.Name())
	assert.InDelta(t, 0.001, opt.GetLR(), 1e-9)

	_, err = optim.New("lbfgs", params, 0.1)
	assert.Error(t, err)
}
