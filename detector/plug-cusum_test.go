package detector_test

import (
	"math"
	"testing"
	"time"

	Ed "github.com/sages-health/episcope/detector"
)

func TestCUSUM_Run(t *testing.T) {
	det := Ed.NewCUSUM()
	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)

	t.Run("A sustained shift eventually alerts", func(t *testing.T) {
		counts := append(sawtooth(14), 14, 14, 14, 14, 14, 14)
		out, err := det.Run(counts, start, "weekly")
		assertError(t, err, nil)

		alerted := false
		for _, a := range out.Alerts {
			if a {
				alerted = true
			}
		}
		if !alerted {
			t.Error("expected the shifted tail to raise an alert")
		}
	})

	t.Run("The sum resets after an alert", func(t *testing.T) {
		counts := append(sawtooth(14), 14, 14, 14, 14, 14, 14)
		out, err := det.Run(counts, start, "weekly")
		assertError(t, err, nil)

		for i, a := range out.Alerts {
			if a && i+1 < len(out.Levels) {
				if out.Levels[i+1] >= out.Levels[i] {
					t.Errorf("level did not reset after alert at %d: %v -> %v",
						i, out.Levels[i], out.Levels[i+1])
				}
				return
			}
		}
		t.Error("no alert found to check the reset against")
	})

	t.Run("A single spike does not cross the decision interval", func(t *testing.T) {
		counts := append(sawtooth(14), 14)
		counts = append(counts, sawtooth(6)...)
		out, err := det.Run(counts, start, "weekly")
		assertError(t, err, nil)

		for i, a := range out.Alerts {
			if a {
				t.Errorf("unexpected alert at index %d", i)
			}
		}
	})

	t.Run("NaN gaps leave the running sum untouched", func(t *testing.T) {
		counts := sawtooth(14)
		counts[9] = math.NaN()
		out, err := det.Run(counts, start, "weekly")
		assertError(t, err, nil)

		if !math.IsNaN(out.Expecteds[9]) {
			t.Errorf("expected NaN expectation at the gap, got %v", out.Expecteds[9])
		}
		if out.Levels[9] != 0 {
			t.Errorf("gap level should stay zero, got %v", out.Levels[9])
		}
	})
}

func TestCUSUM_Type(t *testing.T) {
	assertStringContains(t, Ed.NewCUSUM().Type(), "cusum")
}
