package data

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when a dataset has no samples.
var ErrEmpty = errors.New("data: empty dataset")

// Sample is one labeled feature vector.
type Sample struct {
	Features []float32
	Label    int32
}

// Dataset is an indexable collection of samples.
type Dataset interface {
	Len() int
	Get(i int) Sample
}

// InMemory is a Dataset backed by a slice.
type InMemory struct {
	samples []Sample
}

// NewInMemory wraps samples. All samples must share a feature width.
func NewInMemory(samples []Sample) (*InMemory, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	width := len(samples[0].Features)
	for i, s := range samples {
		if len(s.Features) != width {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(s.Features), width)
		}
	}
	return &InMemory{samples: samples}, nil
}

// Len returns the number of samples.
func (d *InMemory) Len() int {
	return len(d.samples)
}

// Get returns sample i.
func (d *InMemory) Get(i int) Sample {
	return d.samples[i]
}

// NumClasses returns one more than the largest label.
func (d *InMemory) NumClasses() int {
	maxLabel := int32(-1)
	for _, s := range d.samples {
		maxLabel = max(maxLabel, s.Label)
	}
	return int(maxLabel) + 1
}

// Subset is a view of a Dataset restricted to the given indices.
type Subset struct {
	base    Dataset
	indices []int
}

// NewSubset creates a view over base. Indices are not copied.
func NewSubset(base Dataset, indices []int) *Subset {
	return &Subset{base: base, indices: indices}
}

// Len returns the number of indices.
func (s *Subset) Len() int {
	return len(s.indices)
}

// Get returns the i-th selected sample of the base dataset.
func (s *Subset) Get(i int) Sample {
	return s.base.Get(s.indices[i])
}

// Indices returns the selected base indices.
func (s *Subset) Indices() []int {
	return s.indices
}

// Concat chains datasets end to end.
type Concat struct {
	parts   []Dataset
	offsets []int // cumulative lengths, offsets[i] = sum(len(parts[:i+1]))
}

// NewConcat concatenates datasets in order.
func NewConcat(parts ...Dataset) *Concat {
	offsets := make([]int, len(parts))
	total := 0
	for i, p := range parts {
		total += p.Len()
		offsets[i] = total
	}
	return &Concat{parts: parts, offsets: offsets}
}

// Len returns the total number of samples.
func (c *Concat) Len() int {
	if len(c.offsets) == 0 {
		return 0
	}
	return c.offsets[len(c.offsets)-1]
}

// Get returns the i-th sample across all parts.
func (c *Concat) Get(i int) Sample {
	start := 0
	for p, end := range c.offsets {
		if i < end {
			return c.parts[p].Get(i - start)
		}
		start = end
	}
	panic(fmt.Sprintf("data: index %d out of range [0, %d)", i, c.Len()))
}

// Width returns the feature width of the first sample, or 0 when d is empty.
func Width(d Dataset) int {
	if d.Len() == 0 {
		return 0
	}
	return len(d.Get(0).Features)
}
