package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/trainer/internal/tensor"
)

// Xavier returns a [fanOut, fanIn] tensor drawn from
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
// A nil rng uses the global source.
func Xavier(fanIn, fanOut int, rng *rand.Rand) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.MustRaw(tensor.Shape{fanOut, fanIn}, tensor.Float32)

	draw := rand.Float64
	if rng != nil {
		draw = rng.Float64
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // weight init is not security sensitive
		data[i] = float32((draw()*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros returns a zero-filled float32 tensor.
func Zeros(shape tensor.Shape) *tensor.RawTensor {
	return tensor.MustRaw(shape, tensor.Float32)
}
