package detector

/*

	The Adapter sits aside /report/
	Contains the core interface for pluggable temporal detectors

*/

import (
	"time"

	Et "github.com/sages-health/episcope/types"
)

// TemporalDetector is the contract a statistical detector fulfills.
// Run receives the normalized series, the query start date, and the
// time resolution, and returns arrays aligned 1:1 with the input:
// counts, expected values, control-limit levels, and alert flags.
// Warmup reports how many leading points the algorithm needs before
// its expected values are meaningful; callers size the prepull
// window from it. Type is a unique ID for the detector.
type TemporalDetector interface {
	Run(counts []float64, startDate time.Time, resolution string) (*Et.DetectorOutput, error)
	Warmup() int
	Type() string
}
