package detector

/*
	CUSUM

	One-sided cumulative sum chart on standardized residuals.
	Slower to fire than EWMA on a single spike, better at
	catching small sustained shifts.
*/

import (
	"math"
	"time"

	Et "github.com/sages-health/episcope/types"
)

const (
	cusumSlack     = 0.5 // k, allowed drift in sigma units
	cusumDecision  = 4.0 // h, alert threshold on the cumulative sum
	cusumBaseline  = 28
	cusumMinWarmup = 7
)

type CUSUM struct {
	Slack    float64
	Decision float64
	Baseline int
}

func NewCUSUM() *CUSUM {
	return &CUSUM{
		Slack:    cusumSlack,
		Decision: cusumDecision,
		Baseline: cusumBaseline,
	}
}

// Run accumulates positive standardized deviations from the trailing
// baseline mean. The running sum is the level; crossing the decision
// interval raises an alert and resets the sum. NaN gaps carry a NaN
// expectation and leave the sum untouched.
func (c *CUSUM) Run(counts []float64, startDate time.Time, resolution string) (*Et.DetectorOutput, error) {
	n := len(counts)
	out := &Et.DetectorOutput{
		Counts:    make([]float64, n),
		Expecteds: make([]float64, n),
		Levels:    make([]float64, n),
		Colors:    make([]int, n),
		Alerts:    make([]bool, n),
	}
	copy(out.Counts, counts)

	var sum float64
	for i := 0; i < n; i++ {
		v := counts[i]
		if math.IsNaN(v) {
			out.Expecteds[i] = math.NaN()
			continue
		}

		mean, sd := baselineStats(counts, i, c.Baseline)
		out.Expecteds[i] = mean

		if i < cusumMinWarmup || sd == 0 {
			continue
		}

		z := (v - mean) / sd
		sum = math.Max(0, sum+z-c.Slack)
		out.Levels[i] = sum
		if sum > c.Decision {
			out.Alerts[i] = true
			out.Colors[i] = 1
			sum = 0
		}
	}

	return out, nil
}

func (c *CUSUM) Warmup() int  { return cusumMinWarmup }
func (c *CUSUM) Type() string { return "cusum" }
