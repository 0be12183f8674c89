package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	Ed "github.com/sages-health/episcope/detector"
)

// Config is the on-disk configuration for one report data source.
// Grouping is a compact "<dimensionId>:<resolution>" pair naming the
// date dimension records are bucketed by and the bucket size.
type Config struct {
	DataSource             string     `json:"datasource"`
	Port                   int        `json:"port"`
	Grouping               string     `json:"grouping"`
	Detector               string     `json:"detector"`
	Prepull                int        `json:"prepull"`
	Multiplier             float64    `json:"multiplier"`
	Denominators           []string   `json:"denominators"`
	Accumulations          []string   `json:"accumulations"`
	EpiWeekEnabled         bool       `json:"epiWeekEnabled"`
	WeekStartDay           int        `json:"weekStartDay"`
	DisplayIntervalEndDate bool       `json:"displayIntervalEndDate"`
	GraphTitle             string     `json:"graphTitle"`
	XAxisLabel             string     `json:"xAxisLabel"`
	YAxisLabel             string     `json:"yAxisLabel"`
	GraphWidth             int        `json:"graphWidth"`
	GraphHeight            int        `json:"graphHeight"`
	GraphExpected          bool       `json:"graphExpected"`
	ContextPath            string     `json:"contextPath"`
	ServletPath            string     `json:"servletPath"`
	Messages               MessageMap `json:"messages"`
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

func LoadConfig(file *os.File) (*Config, error) {
	// decode json
	var config Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		slog.Error("could not decode file")
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Multiplier == 0 {
		c.Multiplier = 1.0
	}
	if c.GraphWidth == 0 {
		c.GraphWidth = 800
	}
	if c.GraphHeight == 0 {
		c.GraphHeight = 600
	}
	if c.Port == 0 {
		c.Port = 8090
	}
	if c.Messages == nil {
		c.Messages = MessageMap{}
	}
}

// Validate fails fast on configuration the engine cannot run with:
// a grouping without a dimension ID or a detector key the registry
// does not know. These are deployment errors, not request errors.
func (c *Config) Validate() error {
	if _, _, err := ParseGrouping(c.Grouping); err != nil {
		return err
	}
	if _, err := Ed.Lookup(c.Detector); err != nil {
		return err
	}
	return nil
}

// ParseGrouping splits a "<dimensionId>:<resolution>" spec. A
// missing dimension ID is a hard error; a missing resolution
// falls back to daily.
func ParseGrouping(s string) (dimID, resolution string, err error) {
	parts := strings.SplitN(s, ":", 2)
	dimID = strings.TrimSpace(parts[0])
	if dimID == "" {
		return "", "", fmt.Errorf("grouping %q has no dimension id", s)
	}
	resolution = "daily"
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		resolution = strings.TrimSpace(parts[1])
	}
	return dimID, resolution, nil
}
