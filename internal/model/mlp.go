// Package model provides the classifiers trained by the CLI.
package model

import (
	"errors"
	"math/rand/v2"

	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/optim"
)

// Config describes an MLP classifier.
type Config struct {
	Hidden    []int   // hidden layer widths
	Classes   int     // output width
	Optimizer string  // "sgd", "sgd-momentum" or "adam"
	LR        float32 // learning rate (0 = optimizer default)
	Seed      uint64  // weight initialization seed
}

// MLP is a multi-layer perceptron with ReLU activations. The first layer is
// lazy: its input width is fixed by the first batch it sees.
type MLP struct {
	*nn.Sequential
	cfg       Config
	criterion *nn.CrossEntropyLoss
}

// NewMLP builds an MLP from cfg.
func NewMLP(cfg Config) (*MLP, error) {
	if cfg.Classes < 2 {
		return nil, errors.New("model: need at least two classes")
	}
	for _, h := range cfg.Hidden {
		if h <= 0 {
			return nil, errors.New("model: hidden widths must be positive")
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0x6d6c70))
	layers := make([]nn.Module, 0, 2*len(cfg.Hidden)+1)
	prev := 0
	for _, h := range cfg.Hidden {
		layers = append(layers, linear(prev, h, rng), nn.NewReLU())
		prev = h
	}
	layers = append(layers, linear(prev, cfg.Classes, rng))

	return &MLP{
		Sequential: nn.NewSequential(layers...),
		cfg:        cfg,
		criterion:  nn.NewCrossEntropyLoss(),
	}, nil
}

func linear(in, out int, rng *rand.Rand) *nn.Linear {
	if in == 0 {
		return nn.NewLazyLinear(out, rng)
	}
	return nn.NewLinear(in, out, rng)
}

// ConfigureOptimizer returns a fresh optimizer over the current parameters.
func (m *MLP) ConfigureOptimizer() (optim.Optimizer, error) {
	return optim.New(m.cfg.Optimizer, m.Parameters(), m.cfg.LR)
}

// Criterion returns the training loss.
func (m *MLP) Criterion() nn.Loss {
	return m.criterion
}

// HParams returns the hyperparameters recorded by loggers.
func (m *MLP) HParams() map[string]any {
	return map[string]any{
		"hidden":    m.cfg.Hidden,
		"classes":   m.cfg.Classes,
		"optimizer": m.cfg.Optimizer,
		"lr":        m.cfg.LR,
		"seed":      m.cfg.Seed,
	}
}
