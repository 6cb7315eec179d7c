package data

import (
	"math/rand/v2"
)

// BlobsConfig describes a synthetic classification problem.
type BlobsConfig struct {
	Samples  int     // total samples
	Features int     // feature width
	Classes  int     // number of clusters
	Spread   float32 // standard deviation around each center
	Seed     uint64
}

// Blobs generates Gaussian clusters, one per class, with centers spaced
// along the feature axes. Samples are assigned to classes round-robin.
func Blobs(cfg BlobsConfig) (*InMemory, error) {
	if cfg.Samples <= 0 || cfg.Features <= 0 || cfg.Classes <= 0 {
		return nil, ErrEmpty
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x626c6f6273))

	centers := make([][]float32, cfg.Classes)
	for c := range centers {
		centers[c] = make([]float32, cfg.Features)
		centers[c][c%cfg.Features] = 4 * float32(1+c/cfg.Features)
	}

	samples := make([]Sample, cfg.Samples)
	for i := range samples {
		class := i % cfg.Classes
		features := make([]float32, cfg.Features)
		for j := range features {
			features[j] = centers[class][j] + float32(rng.NormFloat64())*cfg.Spread
		}
		samples[i] = Sample{Features: features, Label: int32(class)}
	}
	return NewInMemory(samples)
}
