package report

/*

	ReportAssembly is the entry point the controller layer calls.
	It owns the request lifecycle: query the series source, run the
	detection pipeline per series, align everything on one grid,
	hand the grid to the chart renderer, repair the renderer's
	series JSON, and wrap it all in a ReportResult.

	Orchestration failures (detector, renderer) are converted to a
	structured failure result here so the controller never needs
	resource-specific error handling.

*/

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	Ed "github.com/sages-health/episcope/detector"
	Ew "github.com/sages-health/episcope/epiweek"
	Es "github.com/sages-health/episcope/series"
	Et "github.com/sages-health/episcope/types"
)

// QueryRequest is what the assembly asks of a series source.
type QueryRequest struct {
	DimensionID string
	Resolution  string
	Filters     map[string][]string
}

// SeriesSource is the data query boundary: given the grouping
// dimension and filters, return one AccumPoint per reporting period
// in order, plus the start/end dates the query actually resolved
// from its range filters.
type SeriesSource interface {
	Query(req *QueryRequest) ([]*Et.AccumPoint, time.Time, time.Time, error)
}

// ReportRequest is one report invocation from the controller layer.
// Accumulations name the dimensions plotted as series; when
// YearAsSeries is set they are calendar years instead and each year
// is queried with its own computed date range.
type ReportRequest struct {
	Filters        map[string][]string
	Accumulations  []string
	YearAsSeries   bool
	ClientTimezone *TimezoneInfo
}

type Assembly struct {
	Cfg      *Config
	Source   SeriesSource
	Renderer ChartRenderer
	Messages MessageResolver
	Pipeline *Pipeline

	dimID      string
	resolution string
	address    string
	detailsURL string
	serverTZ   TimezoneInfo
}

// NewAssembly wires an assembly from validated configuration. The
// grouping spec and detector key are resolved here, once: a bad
// grouping or an unknown detector is a deployment error and fails
// fast instead of surfacing per-request.
func NewAssembly(cfg *Config, src SeriesSource, renderer ChartRenderer) (*Assembly, error) {
	dimID, resolution, err := ParseGrouping(cfg.Grouping)
	if err != nil {
		return nil, err
	}

	det, err := Ed.Lookup(cfg.Detector)
	if err != nil {
		return nil, err
	}

	_, rawOffset := time.Now().Zone()

	a := &Assembly{
		Cfg:        cfg,
		Source:     src,
		Renderer:   renderer,
		Messages:   cfg.Messages,
		Pipeline:   NewPipeline(cfg, det),
		dimID:      dimID,
		resolution: resolution,
		serverTZ:   TimezoneInfo{RawOffset: time.Duration(rawOffset) * time.Second},
	}
	a.address = BuildTimeSeriesURL(cfg.ContextPath, cfg.ServletPath, a.Messages)
	a.detailsURL = cfg.ContextPath + cfg.ServletPath + "/report/detailsQuery"
	return a, nil
}

// Run builds one report.
func (a *Assembly) Run(req *ReportRequest) *Et.ReportResult {
	accums := req.Accumulations
	if len(accums) == 0 {
		accums = a.Cfg.Accumulations
	}
	if len(accums) == 0 {
		return a.failureResult(errors.New("no accumulations requested"))
	}

	clientTZ := a.serverTZ
	if req.ClientTimezone != nil {
		clientTZ = *req.ClientTimezone
	}
	tzOffset := TimezoneOffset(a.Messages, clientTZ, a.serverTZ)

	// Outside year-as-series mode every series reads from one query.
	var basePoints []*Et.AccumPoint
	var baseStart, baseEnd time.Time
	if !req.YearAsSeries {
		points, start, end, err := a.Source.Query(&QueryRequest{
			DimensionID: a.dimID,
			Resolution:  a.resolution,
			Filters:     req.Filters,
		})
		if err != nil {
			return a.failureResult(err)
		}
		if len(points) == 0 {
			return a.noDataResult()
		}
		basePoints, baseStart, baseEnd = points, start, end
	}

	grid := Es.NewGrid(len(accums))
	labelSets := make([][]string, 0, len(accums))
	var alerts []Et.AlertEvent
	anyData := false

	for i, acc := range accums {
		points, start, end := basePoints, baseStart, baseEnd
		if req.YearAsSeries {
			params := FixStartEndDatesForYearAsSeries(req.Filters, acc, a.dimID, a.resolution, a.Cfg.EpiWeekEnabled)
			var err error
			points, start, end, err = a.Source.Query(&QueryRequest{
				DimensionID: a.dimID,
				Resolution:  a.resolution,
				Filters:     params,
			})
			if err != nil {
				return a.failureResult(err)
			}
		}
		if len(points) > 0 {
			anyData = true
		}

		divisors := Divisors(points, a.Cfg.Denominators)
		values := SeriesValues(points, acc, divisors, a.Cfg.Multiplier)

		out, err := a.Pipeline.RunDetection(values, start, end, a.resolution)
		if err != nil {
			return a.failureResult(err)
		}

		// daily series keep the dates the query produced
		if len(out.Dates) == 0 {
			out.Dates = pointDates(points, len(out.Counts))
		}

		grid.SetSeries(i, a.buildSeries(acc, out, tzOffset))
		labelSets = append(labelSets, a.pointLabels(out.Dates))
		alerts = append(alerts, collectAlerts(acc, out)...)
	}

	if !anyData {
		return a.noDataResult()
	}

	grid.AlignAll(labelSets)

	rendered, err := a.Renderer.RenderTimeSeries(a.buildGraphData(grid))
	if err != nil {
		return a.failureResult(err)
	}

	seriesJSON, err := RepairSeriesJSON(rendered.DataSeriesJSON)
	if err != nil {
		return a.failureResult(err)
	}

	totalRows, rows := grid.DetailRows()

	return &Et.ReportResult{
		Success: true,
		HTML:    rendered.HTML,
		GraphConfiguration: &Et.GraphConfig{
			Address:        a.address,
			GraphDataID:    rendered.GraphDataID,
			ImageMapName:   rendered.ImageMapName,
			GraphTitle:     a.Cfg.GraphTitle,
			XAxisLabel:     a.Cfg.XAxisLabel,
			YAxisLabel:     a.Cfg.YAxisLabel,
			XLabels:        grid.XAxisLabels(),
			GraphWidth:     a.Cfg.GraphWidth,
			GraphHeight:    a.Cfg.GraphHeight,
			YAxisMin:       rendered.YAxisMin,
			YAxisMax:       rendered.YAxisMax,
			DataSeriesJSON: seriesJSON,
		},
		Details:          rows,
		DetailsTotalRows: totalRows,
		Alerts:           alerts,
	}
}

// buildSeries decorates one detector output with drill-through URLs
// and alt texts, producing the grid record for the series.
func (a *Assembly) buildSeries(label string, out *Et.DetectorOutput, tzOffset time.Duration) Es.SeriesData {
	n := len(out.Counts)
	urls := make([]string, n)
	altTexts := make([]string, n)
	colors := out.Colors
	if colors == nil {
		colors = make([]int, n)
	}

	displayAlert := false
	for j := 0; j < n; j++ {
		var dt time.Time
		if j < len(out.Dates) {
			dt = out.Dates[j].Add(tzOffset)
		}
		// detectors are expected to return arrays as long as Counts,
		// but a short one must not take the whole report down
		var expected, level float64
		if j < len(out.Expecteds) {
			expected = out.Expecteds[j]
		}
		if j < len(out.Levels) {
			level = out.Levels[j]
		}
		urls[j] = BuildDetailsURL(a.detailsURL, a.dimID, a.resolution, dt, a.Cfg.WeekStartDay)
		altTexts[j] = fmt.Sprintf("%s - Count: %v, Expected: %v, Level: %v",
			label,
			FloatPrecise(out.Counts[j], 1),
			FloatPrecise(expected, 1),
			FloatPrecise(level, 3))
		if j < len(out.Alerts) && out.Alerts[j] {
			displayAlert = true
		}
	}

	return Es.SeriesData{
		Counts:       out.Counts,
		Expecteds:    out.Expecteds,
		Levels:       out.Levels,
		Colors:       colors,
		AltTexts:     altTexts,
		URLs:         urls,
		Label:        label,
		DisplayAlert: displayAlert,
	}
}

// pointDates pulls per-point dates off the tail of the queried
// points, matching a series already cropped from the front.
func pointDates(points []*Et.AccumPoint, n int) []time.Time {
	offset := len(points) - n
	if offset < 0 {
		offset = 0
	}
	dates := make([]time.Time, 0, n)
	for _, p := range points[offset:] {
		if p != nil {
			dates = append(dates, p.Date)
		} else {
			dates = append(dates, time.Time{})
		}
	}
	return dates
}

// pointLabel formats one axis label for the active resolution.
// Weekly labels use EPI numbering when enabled, otherwise the
// generic week convention for the configured week-start day.
func (a *Assembly) pointLabel(t time.Time) string {
	switch {
	case strings.EqualFold(a.resolution, Et.ResolutionWeekly):
		if a.Cfg.EpiWeekEnabled {
			return fmt.Sprintf("%d-W%02d", Ew.EpiYear(t), Ew.EpiWeek(t))
		}
		return fmt.Sprintf("%d-W%02d",
			Ew.YearOfWeek(a.Cfg.WeekStartDay, t),
			Ew.WeekOfYear(a.Cfg.WeekStartDay, t))
	case strings.EqualFold(a.resolution, Et.ResolutionMonthly):
		return t.Format("Jan 2006")
	case strings.EqualFold(a.resolution, Et.ResolutionYearly):
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

func (a *Assembly) pointLabels(dates []time.Time) []string {
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = a.pointLabel(d)
	}
	return labels
}

func collectAlerts(label string, out *Et.DetectorOutput) []Et.AlertEvent {
	var alerts []Et.AlertEvent
	for j, flagged := range out.Alerts {
		if !flagged {
			continue
		}
		event := Et.AlertEvent{Series: label}
		if j < len(out.Counts) {
			event.Count = out.Counts[j]
		}
		if j < len(out.Levels) {
			event.Level = out.Levels[j]
		}
		if j < len(out.Dates) {
			event.Date = out.Dates[j]
		}
		alerts = append(alerts, event)
	}
	return alerts
}

// BuildDetailsURL appends the drill-through date boundary params
// for one data point. Sub-daily granularities widen the range to
// the full period: weekly snaps forward to the configured
// week-start day and spans 6 days, monthly and yearly span their
// calendar period, daily pins both ends to the point's own date.
func BuildDetailsURL(base, dateField, resolution string, t time.Time, weekStartDay int) string {
	start, end := t, t
	switch {
	case strings.EqualFold(resolution, Et.ResolutionWeekly):
		ws := t
		for ws.Weekday() != time.Weekday(weekStartDay) {
			ws = ws.AddDate(0, 0, 1)
		}
		start, end = ws, ws.AddDate(0, 0, 6)
	case strings.EqualFold(resolution, Et.ResolutionMonthly):
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		start, end = first, first.AddDate(0, 1, -1)
	case strings.EqualFold(resolution, Et.ResolutionYearly):
		start = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
		end = time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	}

	u := AppendURLParameter(base, dateField+"_start", strconv.FormatInt(start.UnixMilli(), 10))
	return AppendURLParameter(u, dateField+"_end", strconv.FormatInt(end.UnixMilli(), 10))
}

func (a *Assembly) buildGraphData(grid *Es.Grid) *GraphData {
	counts := grid.AllCounts()

	maxTicks := a.Cfg.GraphWidth / 30
	if len(counts) > 0 && len(counts[0]) < maxTicks {
		maxTicks = len(counts[0])
	}

	return &GraphData{
		GraphTitle:              a.Cfg.GraphTitle,
		XAxisLabel:              a.Cfg.XAxisLabel,
		YAxisLabel:              a.Cfg.YAxisLabel,
		GraphWidth:              a.Cfg.GraphWidth,
		GraphHeight:             a.Cfg.GraphHeight,
		MaxLabeledCategoryTicks: maxTicks,
		ShowExpected:            a.Cfg.GraphExpected,
		XLabels:                 grid.XAxisLabels(),
		Counts:                  counts,
		Expecteds:               grid.AllExpecteds(),
		Levels:                  grid.AllLevels(),
		Colors:                  grid.AllColors(),
		AltTexts:                grid.AllAltTexts(),
		LineSetURLs:             grid.AllURLs(),
		LineSetLabels:           grid.Labels(),
		DisplayAlerts:           grid.DisplayAlerts(),
	}
}

// noDataResult is the canned success payload for an empty result
// set: an explanatory HTML fragment instead of a chart.
func (a *Assembly) noDataResult() *Et.ReportResult {
	line1 := a.Messages.GetMessage(noDataLine1Key, "No data found for the selected criteria")
	line2 := a.Messages.GetMessage(noDataLine2Key, "Please try a different date range or filter selection")

	var sb strings.Builder
	sb.WriteString("<h2>" + line1 + "</h2>")
	sb.WriteString("<p>" + line2 + "</p>")

	return &Et.ReportResult{
		Success: true,
		HTML:    sb.String(),
	}
}

// failureResult converts an orchestration error into the structured
// failure payload. The controller gets a whole failed report, never
// a partially built chart.
func (a *Assembly) failureResult(err error) *Et.ReportResult {
	errorMessage := "Failure to create Timeseries"
	if err != nil && err.Error() != "" {
		errorMessage = errorMessage + ":<BR>" + err.Error()
	}
	slog.Error("Failure to create Timeseries", slog.Any("Error", err))
	return &Et.ReportResult{
		Success: false,
		Message: errorMessage,
	}
}
