package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/trainer/internal/parallel"
	"github.com/born-ml/trainer/internal/tensor"
)

// Sequential chains modules: each output is the next module's input.
// Parameter names are prefixed with the module index ("0.weight").
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Modules returns the contained modules.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Forward applies all modules in order.
func (s *Sequential) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	out := input
	for _, m := range s.modules {
		out = m.Forward(out)
	}
	return out
}

// Backward applies all modules in reverse order.
func (s *Sequential) Backward(gradOutput *tensor.RawTensor) *tensor.RawTensor {
	grad := gradOutput
	for i := len(s.modules) - 1; i >= 0; i-- {
		grad = s.modules[i].Backward(grad)
	}
	return grad
}

// Parameters returns the parameters of all modules in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Initialized reports whether every lazy submodule is materialized.
func (s *Sequential) Initialized() bool {
	for _, m := range s.modules {
		if !Initialized(m) {
			return false
		}
	}
	return true
}

// SetParallel propagates cfg to every parallel-aware submodule.
func (s *Sequential) SetParallel(cfg parallel.Config) {
	for _, m := range s.modules {
		if p, ok := m.(ParallelAware); ok {
			p.SetParallel(cfg)
		}
	}
}

// StateDict merges submodule state dicts under "<index>." prefixes.
func (s *Sequential) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		for name, raw := range m.StateDict() {
			out[strconv.Itoa(i)+"."+name] = raw
		}
	}
	return out
}

// LoadStateDict routes "<index>.<name>" entries to submodules.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	parts := make([]map[string]*tensor.RawTensor, len(s.modules))
	for i := range parts {
		parts[i] = make(map[string]*tensor.RawTensor)
	}
	for name, raw := range stateDict {
		idx, rest, ok := strings.Cut(name, ".")
		if !ok {
			return fmt.Errorf("unexpected parameter %q", name)
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(s.modules) {
			return fmt.Errorf("unexpected parameter %q", name)
		}
		parts[i][rest] = raw
	}
	for i, m := range s.modules {
		if len(m.Parameters()) == 0 && len(parts[i]) == 0 && Initialized(m) {
			continue
		}
		if err := m.LoadStateDict(parts[i]); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}
