package types

/*

	These are the "immutable" core types of Episcope,
	provided for cross-package use (e.g. Detectors) and testing.

	There are no functions defined here.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type AccumPoints []*Et.AccumPoint

*/

import "time"

// Time resolutions for a report. The resolution decides how raw
// records were bucketed into AccumPoints and how synthetic dates
// are rebuilt after detection.
const (
	ResolutionDaily   = "daily"
	ResolutionWeekly  = "weekly"
	ResolutionMonthly = "monthly"
	ResolutionYearly  = "yearly"
)

// AccumPoint is one reporting period of accumulated values,
// keyed by dimension ID. A missing key means the dimension was
// absent for that period; a nil *AccumPoint in a series means
// the whole period is absent.
type AccumPoint struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// DetectorOutput is what a temporal detector hands back.
// Every slice is aligned 1:1 with the input series until the
// warm-up window is cropped off the front.
type DetectorOutput struct {
	Counts    []float64
	Expecteds []float64
	Levels    []float64
	Colors    []int
	Alerts    []bool
	Dates     []time.Time
}

// AlertEvent is a single flagged data point, kept around for the
// live alert feed and the alerts snapshot endpoint.
type AlertEvent struct {
	Date   time.Time `json:"date"`
	Series string    `json:"series"`
	Count  float64   `json:"count"`
	Level  float64   `json:"level"`
}

// GraphConfig is the graph-configuration record handed to the
// controller layer so the frontend can rebuild its chart calls.
type GraphConfig struct {
	Address        string           `json:"address"`
	GraphDataID    string           `json:"graphDataId"`
	ImageMapName   string           `json:"imageMapName"`
	GraphTitle     string           `json:"graphTitle"`
	XAxisLabel     string           `json:"xAxisLabel"`
	YAxisLabel     string           `json:"yAxisLabel"`
	XLabels        []string         `json:"xLabels"`
	GraphWidth     int              `json:"graphWidth"`
	GraphHeight    int              `json:"graphHeight"`
	YAxisMin       float64          `json:"yAxisMin"`
	YAxisMax       float64          `json:"yAxisMax"`
	DataSeriesJSON []map[string]any `json:"dataSeriesJSON"`
}

// ReportResult is the structured report payload. On failure only
// Success and Message are meaningful; on an empty result set only
// Success and HTML are. The controller serializes it as-is.
type ReportResult struct {
	Success            bool             `json:"success"`
	Message            string           `json:"message,omitempty"`
	HTML               string           `json:"html,omitempty"`
	GraphConfiguration *GraphConfig     `json:"graphConfiguration,omitempty"`
	Details            []map[string]any `json:"details,omitempty"`
	DetailsTotalRows   int              `json:"detailsTotalRows"`
	Alerts             []AlertEvent     `json:"alerts,omitempty"`
}
