package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// GraphData is the prepared series grid handed to a chart renderer.
type GraphData struct {
	GraphTitle              string
	XAxisLabel              string
	YAxisLabel              string
	GraphWidth              int
	GraphHeight             int
	MaxLabeledCategoryTicks int
	ShowExpected            bool
	XLabels                 []string
	Counts                  [][]float64
	Expecteds               [][]float64
	Levels                  [][]float64
	Colors                  [][]int
	AltTexts                [][]string
	LineSetURLs             [][]string
	LineSetLabels           []string
	DisplayAlerts           []bool
}

// RenderedGraph is what comes back from a chart renderer. The
// DataSeriesJSON field carries the renderer's defective framing
// verbatim; RepairSeriesJSON normalizes it.
type RenderedGraph struct {
	HTML           string
	GraphDataID    string
	ImageMapName   string
	YAxisMin       float64
	YAxisMax       float64
	DataSeriesJSON string
}

// ChartRenderer turns a prepared grid into markup and series JSON.
type ChartRenderer interface {
	RenderTimeSeries(gd *GraphData) (*RenderedGraph, error)
}

// RepairSeriesJSON fixes the renderer's series payload. The library
// always emits a stray leading object-open token and two spurious
// trailing characters; the repair is deterministic: strip the first
// opening brace, drop the final two characters, then parse what is
// left as a normal array of objects.
func RepairSeriesJSON(raw string) ([]map[string]any, error) {
	repaired := strings.Replace(raw, "{", "", 1)
	if len(repaired) < 2 {
		return nil, fmt.Errorf("series JSON too short to repair: %q", raw)
	}
	repaired = repaired[:len(repaired)-2]

	var series []map[string]any
	if err := json.Unmarshal([]byte(repaired), &series); err != nil {
		return nil, fmt.Errorf("series JSON unparseable after repair: %w", err)
	}
	return series, nil
}

var graphSeq atomic.Int64

// HTMLRenderer is the built-in ChartRenderer. It emits a plain HTML
// shell around the series data, with the same defective series-JSON
// framing as the external graph library so the assembly repair path
// is identical for both.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer { return &HTMLRenderer{} }

func (r *HTMLRenderer) RenderTimeSeries(gd *GraphData) (*RenderedGraph, error) {
	seq := graphSeq.Add(1)
	graphDataID := fmt.Sprintf("graphData%d", seq)
	imageMapName := fmt.Sprintf("graphMap%d", seq)

	yMin, yMax := axisBounds(gd.Counts)

	seriesJSON, err := buildSeriesJSON(gd)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<div id=%q class=\"timeseries-graph\" style=\"width:%dpx;height:%dpx\">",
		graphDataID, gd.GraphWidth, gd.GraphHeight))
	sb.WriteString(fmt.Sprintf("<h3>%s</h3>", gd.GraphTitle))
	sb.WriteString(fmt.Sprintf("<map name=%q></map>", imageMapName))
	sb.WriteString("</div>")

	return &RenderedGraph{
		HTML:           sb.String(),
		GraphDataID:    graphDataID,
		ImageMapName:   imageMapName,
		YAxisMin:       yMin,
		YAxisMax:       yMax,
		DataSeriesJSON: seriesJSON,
	}, nil
}

// buildSeriesJSON marshals the per-series arrays and wraps them in
// the defective framing the repair step expects. NaN gaps become
// JSON nulls because the wire format has no NaN.
func buildSeriesJSON(gd *GraphData) (string, error) {
	series := make([]map[string]any, len(gd.Counts))
	for i := range gd.Counts {
		entry := map[string]any{
			"data": nullableFloats(gd.Counts[i]),
		}
		if i < len(gd.LineSetLabels) {
			entry["title"] = gd.LineSetLabels[i]
		}
		if gd.ShowExpected && i < len(gd.Expecteds) {
			entry["expected"] = nullableFloats(gd.Expecteds[i])
		}
		if i < len(gd.DisplayAlerts) {
			entry["displayAlert"] = gd.DisplayAlerts[i]
		}
		series[i] = entry
	}

	b, err := json.Marshal(series)
	if err != nil {
		return "", fmt.Errorf("series marshal error: %w", err)
	}
	return "{" + string(b) + "}}", nil
}

func nullableFloats(a []float64) []any {
	out := make([]any, len(a))
	for i, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out
}

// axisBounds scans all counts for finite min/max, defaulting to a
// unit range when the grid is empty or all gaps.
func axisBounds(counts [][]float64) (float64, float64) {
	yMin := math.Inf(1)
	yMax := math.Inf(-1)
	for _, row := range counts {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			yMin = math.Min(yMin, v)
			yMax = math.Max(yMax, v)
		}
	}
	if yMin > yMax {
		return 0, 1
	}
	return yMin, yMax
}
