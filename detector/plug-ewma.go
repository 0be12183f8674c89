package detector

/*
	EWMA

	Exponentially weighted moving average control chart.

	~~~ Detector Reference Implementation ~~~
*/

import (
	"math"
	"time"

	Et "github.com/sages-health/episcope/types"
)

const (
	defaultSmoothing = 0.4
	defaultBaseline  = 28
	defaultThreshold = 2.0
	minWarmup        = 7
)

type EWMA struct {
	Smoothing float64 // lambda weight on the newest observation
	Baseline  int     // trailing window used for mean/stddev
	Threshold float64 // alert when level exceeds this many sigma
}

func NewEWMA() *EWMA {
	return &EWMA{
		Smoothing: defaultSmoothing,
		Baseline:  defaultBaseline,
		Threshold: defaultThreshold,
	}
}

// Run smooths the series point by point, compares each observation
// against the smoothed expectation of the trailing baseline, and
// reports the deviation in sigma units as the level. A NaN input
// point is a data gap: it carries a NaN expectation, a zero level,
// and never alerts, but does not reset the smoother.
func (e *EWMA) Run(counts []float64, startDate time.Time, resolution string) (*Et.DetectorOutput, error) {
	n := len(counts)
	out := &Et.DetectorOutput{
		Counts:    make([]float64, n),
		Expecteds: make([]float64, n),
		Levels:    make([]float64, n),
		Colors:    make([]int, n),
		Alerts:    make([]bool, n),
	}
	copy(out.Counts, counts)

	smoothed := math.NaN()
	for i := 0; i < n; i++ {
		v := counts[i]
		if math.IsNaN(v) {
			out.Expecteds[i] = math.NaN()
			continue
		}

		if math.IsNaN(smoothed) {
			smoothed = v
		}
		out.Expecteds[i] = smoothed

		mean, sd := baselineStats(counts, i, e.Baseline)
		if i >= minWarmup && sd > 0 {
			out.Levels[i] = (v - mean) / sd
			if out.Levels[i] > e.Threshold {
				out.Alerts[i] = true
				out.Colors[i] = 1
			}
		}

		smoothed = e.Smoothing*v + (1-e.Smoothing)*smoothed
	}

	return out, nil
}

// baselineStats computes mean and standard deviation over the
// window of non-NaN points strictly before index i.
func baselineStats(counts []float64, i, window int) (float64, float64) {
	lo := i - window
	if lo < 0 {
		lo = 0
	}

	var sum float64
	var n int
	for j := lo; j < i; j++ {
		if math.IsNaN(counts[j]) {
			continue
		}
		sum += counts[j]
		n++
	}
	if n < 2 {
		return 0, 0
	}
	mean := sum / float64(n)

	var ss float64
	for j := lo; j < i; j++ {
		if math.IsNaN(counts[j]) {
			continue
		}
		d := counts[j] - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

func (e *EWMA) Warmup() int  { return minWarmup }
func (e *EWMA) Type() string { return "ewma" }
