package report

/*

	The detection pipeline runs once per series, strictly in order:
	extract values, normalize against divisors, hand the series to
	the detector, crop the warm-up window, and rebuild the per-point
	date axis for the chosen resolution.

*/

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	Ed "github.com/sages-health/episcope/detector"
	Ew "github.com/sages-health/episcope/epiweek"
	Et "github.com/sages-health/episcope/types"
)

// Interval is one calendar step of a time resolution.
type Interval int

const (
	IntervalDay Interval = iota
	IntervalWeek
	IntervalMonth
	IntervalYear
)

// Advance moves a date forward by n units of the interval.
func (iv Interval) Advance(t time.Time, n int) time.Time {
	switch iv {
	case IntervalWeek:
		return t.AddDate(0, 0, 7*n)
	case IntervalMonth:
		return t.AddDate(0, n, 0)
	case IntervalYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// DefaultIntervals maps resolution names to calendar units. The map
// is built per pipeline instead of shared process-wide so tests can
// substitute alternate resolution sets.
func DefaultIntervals() map[string]Interval {
	return map[string]Interval{
		Et.ResolutionDaily:   IntervalDay,
		Et.ResolutionWeekly:  IntervalWeek,
		Et.ResolutionMonthly: IntervalMonth,
		Et.ResolutionYearly:  IntervalYear,
	}
}

// Pipeline drives one detector over normalized series values.
type Pipeline struct {
	Detector               Ed.TemporalDetector
	Prepull                int
	Multiplier             float64
	Intervals              map[string]Interval
	DisplayIntervalEndDate bool
}

func NewPipeline(cfg *Config, det Ed.TemporalDetector) *Pipeline {
	return &Pipeline{
		Detector:               det,
		Prepull:                cfg.Prepull,
		Multiplier:             cfg.Multiplier,
		Intervals:              DefaultIntervals(),
		DisplayIntervalEndDate: cfg.DisplayIntervalEndDate,
	}
}

// SeriesValues extracts one dimension from each accumulated point
// and normalizes it. An absent point or absent value becomes NaN so
// gaps stay visible downstream instead of silently reading as zero.
// A zero divisor maps the period to exactly 0.0 rather than dividing.
func SeriesValues(points []*Et.AccumPoint, dimID string, divisors []float64, multiplier float64) []float64 {
	values := make([]float64, len(points))
	for i, point := range points {
		if point != nil {
			if v, ok := point.Values[dimID]; ok {
				values[i] = v
				continue
			}
		}
		values[i] = math.NaN()
	}

	// run divisor before detection
	for i := range values {
		div := divisors[i]
		if div == 0 {
			values[i] = 0.0
		} else {
			values[i] = (values[i] / div) * multiplier
		}
	}
	return values
}

// Divisors builds the per-period divisor array: the periodwise sum
// of the denominator dimensions in rate mode, or uniform 1.0 when
// the query is for raw counts.
func Divisors(points []*Et.AccumPoint, denominators []string) []float64 {
	divisors := make([]float64, len(points))

	if len(denominators) > 0 {
		return totalSeriesValues(points, denominators)
	}

	for i := range divisors {
		divisors[i] = 1.0
	}
	return divisors
}

// totalSeriesValues sums the named dimensions per point. An absent
// point is NaN; an absent value contributes nothing to the sum.
func totalSeriesValues(points []*Et.AccumPoint, dims []string) []float64 {
	totals := make([]float64, len(points))
	for i, point := range points {
		if point == nil {
			totals[i] = math.NaN()
			continue
		}
		for _, dim := range dims {
			if v, ok := point.Values[dim]; ok {
				totals[i] += v
			}
		}
	}
	return totals
}

// QueryStartDate offsets the raw query start past the prepull
// window: days for daily series, whole weeks for weekly. Other
// resolutions run with prepull 0 and keep their start date.
func (p *Pipeline) QueryStartDate(start time.Time, resolution string) time.Time {
	switch {
	case strings.EqualFold(resolution, Et.ResolutionWeekly):
		return start.AddDate(0, 0, 7*p.Prepull)
	case strings.EqualFold(resolution, Et.ResolutionDaily):
		return start.AddDate(0, 0, p.Prepull)
	}
	return start
}

// RunDetection invokes the detector on a normalized series, crops
// the warm-up points off every output array, and, for non-daily
// resolutions, synthesizes the per-point date axis. Daily series
// keep the dates that came back with the query. Detector errors
// propagate untouched; the caller turns them into a failure result.
func (p *Pipeline) RunDetection(series []float64, start, end time.Time, resolution string) (*Et.DetectorOutput, error) {
	queryStart := p.QueryStartDate(start, resolution)

	out, err := p.Detector.Run(series, start, resolution)
	if err != nil {
		return nil, err
	}

	CropStartup(out, p.Prepull)

	if !strings.EqualFold(resolution, Et.ResolutionDaily) {
		out.Dates = p.BuildDates(queryStart, end, len(out.Counts), resolution)
	}
	return out, nil
}

func cropHead[T any](a []T, n int) []T {
	if a == nil {
		return nil
	}
	if n > len(a) {
		n = len(a)
	}
	return a[n:]
}

// CropStartup removes the first prepull points from every detector
// output array. They were fetched only to prime the detector and
// must not appear in the final series.
func CropStartup(out *Et.DetectorOutput, prepull int) {
	if prepull <= 0 {
		return
	}
	out.Counts = cropHead(out.Counts, prepull)
	out.Expecteds = cropHead(out.Expecteds, prepull)
	out.Levels = cropHead(out.Levels, prepull)
	out.Colors = cropHead(out.Colors, prepull)
	out.Alerts = cropHead(out.Alerts, prepull)
	out.Dates = cropHead(out.Dates, prepull)
}

// BuildDates synthesizes the post-crop date axis. The first point
// sits at the query start date, optionally advanced to the end of
// its first complete period, and each following point advances one
// calendar unit of the resolution, clipped to the query end date.
// An unrecognized resolution is a degraded mode: every point keeps
// the start date, no unit advance is performed.
func (p *Pipeline) BuildDates(start, end time.Time, size int, resolution string) []time.Time {
	if p.DisplayIntervalEndDate {
		start = p.resolutionEndDate(start, resolution, end)
	}

	dates := make([]time.Time, size)
	iv, known := p.Intervals[resolution]
	for i := range dates {
		d := start
		if known {
			d = iv.Advance(start, i)
		}
		if !end.IsZero() && d.After(end) {
			d = end
		}
		dates[i] = d
	}
	return dates
}

// resolutionEndDate pads a date to the last day of its period for
// weekly, monthly, and yearly resolutions, capped at maxDate so the
// displayed label never exceeds the query range.
func (p *Pipeline) resolutionEndDate(start time.Time, resolution string, maxDate time.Time) time.Time {
	d := start
	switch {
	case strings.EqualFold(resolution, Et.ResolutionWeekly):
		d = start.AddDate(0, 0, 6)
	case strings.EqualFold(resolution, Et.ResolutionMonthly):
		d = start.AddDate(0, 1, -1)
	case strings.EqualFold(resolution, Et.ResolutionYearly):
		d = start.AddDate(1, 0, -1)
	}
	if !maxDate.IsZero() && d.After(maxDate) {
		d = maxDate
	}
	return d
}

// FixStartEndDatesForYearAsSeries replaces the range filters on the
// grouping dimension with boundaries computed from the accumulation
// year. A selector that does not parse as a year is logged and
// skipped: the series keeps whatever range was already present.
func FixStartEndDatesForYearAsSeries(params map[string][]string, yearID, groupID, resolution string, epiEnabled bool) map[string][]string {
	updated := make(map[string][]string, len(params)+2)
	for k, v := range params {
		updated[k] = v
	}

	year, err := strconv.Atoi(yearID)
	if err != nil {
		slog.Error("Could not parse accumulation as a year",
			slog.String("accumulation", yearID),
			slog.Any("Error", err))
		return updated
	}

	start := Ew.YearStart(year, resolution, epiEnabled)
	end := Ew.YearEnd(year, resolution, epiEnabled)
	slog.Info("Year-as-series range",
		slog.Int("year", year),
		slog.Time("start", start),
		slog.Time("end", end))

	updated[groupID+"_start"] = []string{strconv.FormatInt(start.UnixMilli(), 10)}
	updated[groupID+"_end"] = []string{strconv.FormatInt(end.UnixMilli(), 10)}
	return updated
}
