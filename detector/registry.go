package detector

import "fmt"

// Detectors is a global map of TemporalDetector plugins.
var Detectors = map[string]func() TemporalDetector{
	"ewma": func() TemporalDetector {
		return NewEWMA()
	},
	"cusum": func() TemporalDetector {
		return NewCUSUM()
	},
}

// Lookup resolves a configured algorithm identifier to a fresh
// detector instance. Unknown keys are rejected here, at config
// validation time, not when a report request arrives.
func Lookup(name string) (TemporalDetector, error) {
	factory, ok := Detectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector: %s", name)
	}
	return factory(), nil
}
