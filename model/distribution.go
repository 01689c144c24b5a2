package model

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

var (
	// Returned when a distribution is constructed with times and
	// probas of different lengths.
	ErrDistributionMismatch = errors.New("times and probas must contain the same number of elements")

	// Returned when CDF is queried with a negative delay.
	ErrInvalidDelay = errors.New("the delay of a CDF query has to be non-negative")
)

// A discrete delay distribution: Probas[i] is the probability of a
// delay of exactly Times[i] minutes. Immutable after construction.
type Distribution struct {
	ID     int
	Times  []int
	Probas []float64
}

// Builds a distribution from parallel times/probas slices. The
// slices are copied and kept sorted by time, so CDF can accumulate
// with a single prefix scan.
func NewDistribution(id int, times []int, probas []float64) (*Distribution, error) {
	if len(times) != len(probas) {
		return nil, errors.Wrapf(ErrDistributionMismatch, "distribution %d: %d times, %d probas",
			id, len(times), len(probas))
	}

	d := &Distribution{
		ID:     id,
		Times:  append([]int(nil), times...),
		Probas: append([]float64(nil), probas...),
	}
	sort.Sort(byTime{d})
	return d, nil
}

// Probability of a delay of at most the given number of minutes.
func (d *Distribution) CDF(delay int) (float64, error) {
	if delay < 0 {
		return 0, errors.Wrapf(ErrInvalidDelay, "got %d", delay)
	}

	p := 0.0
	for i, t := range d.Times {
		if t > delay {
			break
		}
		p += d.Probas[i]
	}
	return p, nil
}

func (d *Distribution) String() string {
	return fmt.Sprintf("distribution %d, %d values", d.ID, len(d.Times))
}

type byTime struct{ d *Distribution }

func (s byTime) Len() int           { return len(s.d.Times) }
func (s byTime) Less(i, j int) bool { return s.d.Times[i] < s.d.Times[j] }
func (s byTime) Swap(i, j int) {
	s.d.Times[i], s.d.Times[j] = s.d.Times[j], s.d.Times[i]
	s.d.Probas[i], s.d.Probas[j] = s.d.Probas[j], s.d.Probas[i]
}
