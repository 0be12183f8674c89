package report

import (
	"math"
	"strconv"
	"testing"
	"time"

	Ed "github.com/sages-health/episcope/detector"
	Et "github.com/sages-health/episcope/types"
)

func makeTestPoints(dates []time.Time, values []map[string]float64) []*Et.AccumPoint {
	points := make([]*Et.AccumPoint, len(dates))
	for i := range dates {
		if values[i] == nil {
			continue
		}
		points[i] = &Et.AccumPoint{Date: dates[i], Values: values[i]}
	}
	return points
}

func TestSeriesValues(t *testing.T) {
	d := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	points := makeTestPoints(
		[]time.Time{d, d.AddDate(0, 0, 7), d.AddDate(0, 0, 14), d.AddDate(0, 0, 21)},
		[]map[string]float64{
			{"ili": 8},
			{"ili": 6},
			nil,          // whole period absent
			{"other": 3}, // dimension absent
		},
	)

	t.Run("Raw counts pass through with unit divisors", func(t *testing.T) {
		got := SeriesValues(points, "ili", Divisors(points, nil), 1.0)
		if got[0] != 8 || got[1] != 6 {
			t.Errorf("got %v, want [8 6 ...]", got[:2])
		}
	})

	t.Run("Absent points and values become NaN", func(t *testing.T) {
		got := SeriesValues(points, "ili", Divisors(points, nil), 1.0)
		if !math.IsNaN(got[2]) {
			t.Errorf("absent point should be NaN, got %v", got[2])
		}
		if !math.IsNaN(got[3]) {
			t.Errorf("absent value should be NaN, got %v", got[3])
		}
	})

	t.Run("Zero divisor maps the period to exactly zero", func(t *testing.T) {
		divisors := []float64{0, 4, 1, 1}
		got := SeriesValues(points, "ili", divisors, 2.0)
		if got[0] != 0.0 {
			t.Errorf("zero divisor should give 0.0, got %v", got[0])
		}
		if got[1] != 3.0 {
			t.Errorf("got %v, want (6/4)*2 = 3", got[1])
		}
	})
}

func TestDivisors(t *testing.T) {
	d := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	points := makeTestPoints(
		[]time.Time{d, d.AddDate(0, 0, 7), d.AddDate(0, 0, 14)},
		[]map[string]float64{
			{"total": 100, "extra": 20},
			{"total": 50},
			nil,
		},
	)

	t.Run("No denominators means uniform 1.0", func(t *testing.T) {
		got := Divisors(points, nil)
		for i, v := range got {
			if v != 1.0 {
				t.Errorf("index %d: got %v, want 1.0", i, v)
			}
		}
	})

	t.Run("Denominators sum per period", func(t *testing.T) {
		got := Divisors(points, []string{"total", "extra"})
		if got[0] != 120 {
			t.Errorf("got %v, want 120", got[0])
		}
		if got[1] != 50 {
			t.Errorf("got %v, want 50", got[1])
		}
		if !math.IsNaN(got[2]) {
			t.Errorf("absent point divisor should be NaN, got %v", got[2])
		}
	})
}

func TestQueryStartDate(t *testing.T) {
	p := &Pipeline{Prepull: 2, Intervals: DefaultIntervals()}
	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)

	t.Run("Weekly advances whole weeks", func(t *testing.T) {
		got := p.QueryStartDate(start, "weekly")
		want := start.AddDate(0, 0, 14)
		assertTime(t, got, want)
	})

	t.Run("Daily advances days", func(t *testing.T) {
		got := p.QueryStartDate(start, "daily")
		want := start.AddDate(0, 0, 2)
		assertTime(t, got, want)
	})

	t.Run("Monthly is untouched", func(t *testing.T) {
		got := p.QueryStartDate(start, "monthly")
		assertTime(t, got, start)
	})
}

func TestCropStartup(t *testing.T) {
	out := &Et.DetectorOutput{
		Counts:    []float64{0, 1, 2, 3, 4, 5, 6},
		Expecteds: []float64{0, 1, 2, 3, 4, 5, 6},
		Levels:    []float64{0, 1, 2, 3, 4, 5, 6},
		Colors:    []int{0, 1, 2, 3, 4, 5, 6},
		Alerts:    []bool{false, true, false, false, false, false, false},
	}

	CropStartup(out, 2)

	t.Run("Drops the first prepull points from every array", func(t *testing.T) {
		if len(out.Counts) != 5 {
			t.Fatalf("got %d counts, want 5", len(out.Counts))
		}
		if out.Counts[0] != 2 {
			t.Errorf("got first count %v, want 2", out.Counts[0])
		}
		if len(out.Alerts) != 5 || out.Alerts[0] {
			t.Error("alerts not cropped in step with counts")
		}
	})

	t.Run("Prepull zero is a no-op", func(t *testing.T) {
		n := len(out.Counts)
		CropStartup(out, 0)
		if len(out.Counts) != n {
			t.Errorf("got %d counts, want %d", len(out.Counts), n)
		}
	})

	t.Run("Prepull past the length empties the arrays", func(t *testing.T) {
		CropStartup(out, 99)
		if len(out.Counts) != 0 {
			t.Errorf("got %d counts, want 0", len(out.Counts))
		}
	})
}

func TestBuildDates(t *testing.T) {
	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 28)

	t.Run("Weekly dates advance seven days", func(t *testing.T) {
		p := &Pipeline{Intervals: DefaultIntervals()}
		got := p.BuildDates(start, end, 3, "weekly")

		assertTime(t, got[0], start)
		assertTime(t, got[1], start.AddDate(0, 0, 7))
		assertTime(t, got[2], start.AddDate(0, 0, 14))
	})

	t.Run("Dates clip at the query end", func(t *testing.T) {
		p := &Pipeline{Intervals: DefaultIntervals()}
		shortEnd := start.AddDate(0, 0, 7)
		got := p.BuildDates(start, shortEnd, 3, "weekly")

		assertTime(t, got[1], shortEnd)
		assertTime(t, got[2], shortEnd)
	})

	t.Run("Interval end display shifts the anchor to the period end", func(t *testing.T) {
		p := &Pipeline{Intervals: DefaultIntervals(), DisplayIntervalEndDate: true}
		got := p.BuildDates(start, end, 2, "weekly")

		assertTime(t, got[0], start.AddDate(0, 0, 6))
		assertTime(t, got[1], start.AddDate(0, 0, 13))
	})

	t.Run("Unknown resolution repeats the start date", func(t *testing.T) {
		p := &Pipeline{Intervals: DefaultIntervals()}
		got := p.BuildDates(start, end, 3, "fortnightly")

		for i := range got {
			assertTime(t, got[i], start)
		}
	})

	t.Run("Monthly advances calendar months", func(t *testing.T) {
		p := &Pipeline{Intervals: DefaultIntervals()}
		farEnd := start.AddDate(1, 0, 0)
		got := p.BuildDates(start, farEnd, 2, "monthly")

		assertTime(t, got[1], start.AddDate(0, 1, 0))
	})
}

func TestRunDetection(t *testing.T) {
	det, err := Ed.Lookup("ewma")
	assertNoError(t, err)
	p := &Pipeline{Detector: det, Prepull: 2, Intervals: DefaultIntervals()}

	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7*9)
	series := []float64{9, 11, 9, 11, 9, 11, 9, 11, 9, 11}

	t.Run("Crops prepull and synthesizes weekly dates", func(t *testing.T) {
		out, err := p.RunDetection(series, start, end, "weekly")
		assertNoError(t, err)

		if len(out.Counts) != 8 {
			t.Fatalf("got %d counts, want 8", len(out.Counts))
		}
		if out.Counts[0] != 9 {
			t.Errorf("got first count %v, want 9", out.Counts[0])
		}

		// dates start at the prepull-adjusted query start
		assertTime(t, out.Dates[0], start.AddDate(0, 0, 14))
		assertTime(t, out.Dates[1], start.AddDate(0, 0, 21))
	})

	t.Run("Daily series carry no synthetic dates", func(t *testing.T) {
		out, err := p.RunDetection(series, start, end, "daily")
		assertNoError(t, err)
		if len(out.Dates) != 0 {
			t.Errorf("got %d synthetic dates, want 0", len(out.Dates))
		}
	})
}

func TestFixStartEndDatesForYearAsSeries(t *testing.T) {
	base := map[string][]string{"zone": {"north"}}

	t.Run("Sets range filters from the year", func(t *testing.T) {
		got := FixStartEndDatesForYearAsSeries(base, "2021", "visit_date", "weekly", true)

		wantStart := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
		wantEnd := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

		assertMilliParam(t, got, "visit_date_start", wantStart)
		assertMilliParam(t, got, "visit_date_end", wantEnd)

		if len(got["zone"]) != 1 || got["zone"][0] != "north" {
			t.Error("existing filters must be preserved")
		}
	})

	t.Run("Does not mutate the caller's params", func(t *testing.T) {
		FixStartEndDatesForYearAsSeries(base, "2021", "visit_date", "weekly", true)
		if _, ok := base["visit_date_start"]; ok {
			t.Error("caller's params were mutated")
		}
	})

	t.Run("A selector that is not a year is skipped", func(t *testing.T) {
		got := FixStartEndDatesForYearAsSeries(base, "influenza", "visit_date", "weekly", true)
		if _, ok := got["visit_date_start"]; ok {
			t.Error("no range should be set for a non-year selector")
		}
	})
}

/// Helpers

func assertTime(t *testing.T, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func assertMilliParam(t *testing.T, params map[string][]string, key string, want time.Time) {
	t.Helper()
	vals, ok := params[key]
	if !ok || len(vals) == 0 {
		t.Fatalf("missing param %q", key)
	}
	wantMillis := strconv.FormatInt(want.UnixMilli(), 10)
	if vals[0] != wantMillis {
		t.Errorf("param %q = %s, want %s", key, vals[0], wantMillis)
	}
}
