package nn

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/parallel"
	"github.com/born-ml/trainer/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(data, shape)
	require.NoError(t, err)
	return raw
}

func TestLinearForward(t *testing.T) {
	l := NewLinear(2, 2, rand.New(rand.NewPCG(1, 2)))
	copy(l.Weight().Tensor().AsFloat32(), []float32{1, 2, 3, 4})
	copy(l.Bias().Tensor().AsFloat32(), []float32{0.5, -1})

	out := l.Forward(mustTensor(t, []float32{1, 1, 2, 0}, tensor.Shape{2, 2}))

	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{3.5, 6, 2.5, 5}, out.AsFloat32())
}

func TestLazyLinearMaterializesOnForward(t *testing.T) {
	l := NewLazyLinear(3, nil)
	assert.False(t, l.Initialized())
	assert.Empty(t, l.Parameters())
	assert.Empty(t, l.StateDict())

	l.Forward(mustTensor(t, make([]float32, 10), tensor.Shape{2, 5}))

	assert.True(t, l.Initialized())
	assert.Equal(t, 5, l.InFeatures())
	assert.Equal(t, tensor.Shape{3, 5}, l.Weight().Tensor().Shape())
	assert.Len(t, l.Parameters(), 2)
}

func TestLinearRejectsWrongWidth(t *testing.T) {
	l := NewLinear(4, 2, nil)
	assert.Panics(t, func() {
		l.Forward(mustTensor(t, make([]float32, 6), tensor.Shape{2, 3}))
	})
}

// numericGrad perturbs one weight and measures the loss change.
func numericGrad(m Module, w []float32, idx int, x *tensor.RawTensor, y []int32) float64 {
	const eps = 1e-3
	loss := NewCrossEntropyLoss()
	orig := w[idx]
	w[idx] = orig + eps
	plus := loss.Forward(m.Forward(x), y).Loss
	w[idx] = orig - eps
	minus := loss.Forward(m.Forward(x), y).Loss
	w[idx] = orig
	return (plus - minus) / (2 * eps)
}

func TestSequentialBackwardMatchesNumericGradient(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	model := NewSequential(NewLinear(3, 4, rng), NewLinear(4, 2, rng))
	model.SetParallel(parallel.Config{NumWorkers: 2, MinChunkSize: 1})

	x := mustTensor(t, []float32{0.5, -1, 2, 1.5, 0.3, -0.7}, tensor.Shape{2, 3})
	y := []int32{0, 1}

	out := NewCrossEntropyLoss().Forward(model.Forward(x), y)
	ZeroGrad(model)
	model.Backward(out.Grad)

	for _, p := range model.Parameters() {
		w := p.Tensor().AsFloat32()
		g := p.Grad().AsFloat32()
		for i := range w {
			want := numericGrad(model, w, i, x, y)
			assert.InDelta(t, want, float64(g[i]), 1e-2, "%s[%d]", p.Name(), i)
		}
	}
}

func TestReLUBackwardMasksNegativeInputs(t *testing.T) {
	r := NewReLU()
	out := r.Forward(mustTensor(t, []float32{-1, 2, 0, 3}, tensor.Shape{1, 4}))
	assert.Equal(t, []float32{0, 2, 0, 3}, out.AsFloat32())

	grad := r.Backward(mustTensor(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 4}))
	assert.Equal(t, []float32{0, 1, 0, 1}, grad.AsFloat32())
}

func TestCrossEntropyLoss(t *testing.T) {
	logits := mustTensor(t, []float32{0, 0, 10, 0}, tensor.Shape{2, 2})
	out := NewCrossEntropyLoss().Forward(logits, []int32{1, 0})

	// Row 0 is uniform: ln 2. Row 1 is confident and correct: ~0.
	assert.InDelta(t, math.Ln2/2, out.Loss, 1e-4)
	assert.Equal(t, 1, out.Correct)

	g := out.Grad.AsFloat32()
	assert.InDelta(t, 0.25, g[0], 1e-5)
	assert.InDelta(t, -0.25, g[1], 1e-5)
}

func TestCrossEntropyLossRejectsBadTarget(t *testing.T) {
	logits := mustTensor(t, []float32{0, 0}, tensor.Shape{1, 2})
	assert.Panics(t, func() { NewCrossEntropyLoss().Forward(logits, []int32{2}) })
}

func TestSequentialStateDictIntoLazyModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	src := NewSequential(NewLinear(5, 3, rng), NewReLU(), NewLinear(3, 2, rng))

	state := src.StateDict()
	assert.Contains(t, state, "0.weight")
	assert.Contains(t, state, "2.bias")
	assert.Len(t, state, 4)

	dst := NewSequential(NewLazyLinear(3, nil), NewReLU(), NewLazyLinear(2, nil))
	assert.False(t, Initialized(dst))
	require.NoError(t, dst.LoadStateDict(state))
	assert.True(t, Initialized(dst))

	x := mustTensor(t, []float32{1, 2, 3, 4, 5}, tensor.Shape{1, 5})
	assert.Equal(t, src.Forward(x).AsFloat32(), dst.Forward(x).AsFloat32())
}

func TestSequentialLoadStateDictErrors(t *testing.T) {
	model := NewSequential(NewLinear(2, 2, nil))
	assert.Error(t, model.LoadStateDict(map[string]*tensor.RawTensor{"weight": nil}))
	assert.Error(t, model.LoadStateDict(map[string]*tensor.RawTensor{"7.weight": nil}))
	assert.Error(t, model.LoadStateDict(map[string]*tensor.RawTensor{}))
}

type fakeOptimizer struct {
	state map[string]*tensor.RawTensor
}

func (f *fakeOptimizer) Name() string { return "Fake" }

func (f *fakeOptimizer) GetLR() float32 { return 0.1 }

func (f *fakeOptimizer) StateDict() map[string]*tensor.RawTensor { return f.state }

func (f *fakeOptimizer) LoadStateDict(s map[string]*tensor.RawTensor) error {
	f.state = s
	return nil
}

func TestCheckpointSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	model := NewSequential(NewLinear(4, 3, rng), NewReLU(), NewLinear(3, 2, rng))
	opt := &fakeOptimizer{state: map[string]*tensor.RawTensor{
		"velocity.0": mustTensor(t, []float32{1, 2}, tensor.Shape{2}),
	}}

	path := filepath.Join(t.TempDir(), "ckpt", "model.ckpt")
	ckpt := &Checkpoint{Model: model, Optimizer: opt, Epoch: 2, Step: 40, Monitor: "val_loss", MonitorValue: 0.3}
	require.NoError(t, ckpt.Save(path))

	restored := NewSequential(NewLazyLinear(3, nil), NewReLU(), NewLazyLinear(2, nil))
	restoredOpt := &fakeOptimizer{}
	loaded, err := LoadCheckpoint(path, restored, restoredOpt)
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.Epoch)
	assert.Equal(t, int64(40), loaded.Step)
	assert.Equal(t, "val_loss", loaded.Monitor)
	assert.InDelta(t, 0.3, loaded.MonitorValue, 1e-9)
	assert.Equal(t, "*nn.Sequential", loaded.ModelType)
	require.Contains(t, restoredOpt.state, "velocity.0")
	assert.Equal(t, []float32{1, 2}, restoredOpt.state["velocity.0"].AsFloat32())

	x := mustTensor(t, []float32{1, -1, 0.5, 2}, tensor.Shape{1, 4})
	assert.Equal(t, model.Forward(x).AsFloat32(), restored.Forward(x).AsFloat32())
}

func TestCheckpointRequiresInitializedModel(t *testing.T) {
	ckpt := &Checkpoint{Model: NewSequential(NewLazyLinear(2, nil))}
	assert.Error(t, ckpt.Save(filepath.Join(t.TempDir(), "x.ckpt")))
}
