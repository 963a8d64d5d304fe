package core

import (
	"errors"
	"fmt"
)

// ErrDegenerateDistribution is returned when a distribution has no positive weight
var ErrDegenerateDistribution = errors.New("distribution has no positive weight")

// Distribution1D is a piecewise-constant discrete distribution
type Distribution1D struct {
	pdf []float64 // normalized bin probabilities
	sum float64   // raw weight sum
}

// Reset builds the distribution from non-negative weights, reusing its storage when
// it is large enough. Negative weights are treated as zero. On error the
// distribution is left empty. The zero value is an empty distribution.
func (d *Distribution1D) Reset(weights []float64) error {
	d.pdf, d.sum = d.pdf[:0], 0
	if len(weights) == 0 {
		return fmt.Errorf("empty weights: %w", ErrDegenerateDistribution)
	}

	sum := 0.0
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if !(sum > 0) {
		return fmt.Errorf("%d weights sum to %v: %w", len(weights), sum, ErrDegenerateDistribution)
	}

	if cap(d.pdf) < len(weights) {
		d.pdf = make([]float64, len(weights))
	}
	d.pdf = d.pdf[:len(weights)]
	d.sum = sum
	for i, w := range weights {
		d.pdf[i] = 0
		if w > 0 {
			d.pdf[i] = w / sum
		}
	}
	return nil
}

// Sum returns the raw (unnormalized) weight sum
func (d *Distribution1D) Sum() float64 {
	return d.sum
}

// PDFs returns the normalized bin probabilities. The slice must not be modified.
func (d *Distribution1D) PDFs() []float64 {
	return d.pdf
}
