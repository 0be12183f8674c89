package series

/*

	The Grid collects one SeriesData record per plotted series and
	reconciles their ragged lengths into a rectangular layout that
	the chart renderer and the details table both read from.

	The series count is fixed at construction. AlignAll is the
	single-pass, per-request alignment step; after it runs, every
	padded array shares the same length and the grid should be
	treated as read-only.

*/

import "log/slog"

// SeriesData holds everything one series contributes to a chart.
// SwitchInfo is deliberately never padded during alignment.
type SeriesData struct {
	Counts       []float64
	Expecteds    []float64
	Levels       []float64
	Colors       []int
	AltTexts     []string
	URLs         []string
	SwitchInfo   []string
	Label        string
	DisplayAlert bool

	hasExpected bool // set on assignment, before padding can mask absence
}

type Grid struct {
	series      []SeriesData
	xAxisLabels []string
}

// NewGrid allocates a grid with a fixed number of series slots.
func NewGrid(numSeries int) *Grid {
	return &Grid{
		series: make([]SeriesData, numSeries),
	}
}

// SetSeries assigns all per-series arrays at a fixed slot.
// The grid never grows: an out-of-range index is dropped.
func (g *Grid) SetSeries(ix int, sd SeriesData) {
	if ix < 0 || ix >= len(g.series) {
		slog.Error("Series index out of range", slog.Int("index", ix), slog.Int("size", len(g.series)))
		return
	}
	sd.hasExpected = len(sd.Expecteds) > 0
	g.series[ix] = sd
}

func (g *Grid) SeriesCount() int { return len(g.series) }

func (g *Grid) SeriesAt(ix int) SeriesData { return g.series[ix] }

func (g *Grid) XAxisLabels() []string { return g.xAxisLabels }

// MaxDataLength reports the number of points in the longest series.
func (g *Grid) MaxDataLength() int {
	maxLen := 0
	for i := range g.series {
		if n := len(g.series[i].Counts); n > maxLen {
			maxLen = n
		}
	}
	return maxLen
}

// pad right-pads a series array out to length. Original values are
// retained in place and the default fills the trailing slots, except
// the final slot, which the fill range excludes and therefore stays
// at the element type's zero value. Frontends consuming the padded
// arrays expect that exact layout; changing the bound changes the
// wire contract.
func pad[T any](a []T, length int, def T) []T {
	if len(a) >= length {
		return a
	}
	out := make([]T, length)
	copy(out, a)
	for i := len(a); i < length-1; i++ {
		out[i] = def
	}
	return out
}

// AlignAll pads every series to the longest counts length and picks
// the x-axis labels from the candidate set whose length matches it
// exactly. No candidate match means an empty axis: labels are never
// interpolated or truncated. Calling it twice is a no-op.
func (g *Grid) AlignAll(candidateLabelSets [][]string) {
	target := g.MaxDataLength()

	for i := range g.series {
		s := &g.series[i]
		s.Counts = pad(s.Counts, target, 0)
		s.Colors = pad(s.Colors, target, 0)
		s.AltTexts = pad(s.AltTexts, target, "")
		s.Expecteds = pad(s.Expecteds, target, 0)
		s.Levels = pad(s.Levels, target, 0)
		s.URLs = pad(s.URLs, target, "")
		// SwitchInfo stays ragged
	}

	g.xAxisLabels = pickXAxisLabels(candidateLabelSets, target)
}

// pickXAxisLabels returns the first candidate label sequence with
// exactly the target length, or an empty sequence if none matches.
func pickXAxisLabels(labels [][]string, target int) []string {
	for _, candidate := range labels {
		if len(candidate) == target {
			return candidate
		}
	}
	return []string{}
}

// DetailRows flattens the aligned grid into one row per series per
// period for the details table. Expected and Switch appear only on
// rows of a series that carries those arrays: absence is omission,
// not a null value, so series with and without expected-value
// support coexist in one report. Callers must AlignAll first.
func (g *Grid) DetailRows() (int, []map[string]any) {
	totalPoints := 0
	details := make([]map[string]any, 0)

	for i := range g.series {
		s := &g.series[i]
		if s.Counts == nil {
			continue
		}
		for j := range s.Counts {
			totalPoints++
			detail := map[string]any{
				"Series": s.Label,
				"Level":  s.Levels[j],
				"Count":  s.Counts[j],
				"Color":  s.Colors[j],
			}
			if j < len(g.xAxisLabels) {
				detail["Date"] = g.xAxisLabels[j]
			}
			if s.hasExpected && j < len(s.Expecteds) {
				detail["Expected"] = s.Expecteds[j]
			}
			if len(s.SwitchInfo) > 0 && j < len(s.SwitchInfo) {
				detail["Switch"] = s.SwitchInfo[j]
			}
			details = append(details, detail)
		}
	}

	return totalPoints, details
}

// Per-series arrays collected for the chart renderer.

func (g *Grid) AllCounts() [][]float64 {
	out := make([][]float64, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].Counts
	}
	return out
}

func (g *Grid) AllExpecteds() [][]float64 {
	out := make([][]float64, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].Expecteds
	}
	return out
}

func (g *Grid) AllLevels() [][]float64 {
	out := make([][]float64, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].Levels
	}
	return out
}

func (g *Grid) AllColors() [][]int {
	out := make([][]int, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].Colors
	}
	return out
}

func (g *Grid) AllAltTexts() [][]string {
	out := make([][]string, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].AltTexts
	}
	return out
}

func (g *Grid) AllURLs() [][]string {
	out := make([][]string, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].URLs
	}
	return out
}

func (g *Grid) Labels() []string {
	out := make([]string, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].Label
	}
	return out
}

func (g *Grid) DisplayAlerts() []bool {
	out := make([]bool, len(g.series))
	for i := range g.series {
		out[i] = g.series[i].DisplayAlert
	}
	return out
}
