package main

import (
	"fmt"
	"log/slog"
	"os"

	Eo "github.com/sages-health/episcope/obvy"
	Er "github.com/sages-health/episcope/report"
	Es "github.com/sages-health/episcope/store"
	Ew "github.com/sages-health/episcope/web"
)

const storeBatchSize = 64

func init() {
	User := Er.FillEnvVar("USER")
	fmt.Printf("Episcope initializing for ... %s\n", User)
}

func main() {
	cfgPath := Er.FillEnvVar("EPISCOPE_CONFIG")
	cfg, err := Er.LoadConfigFileName(cfgPath)
	if err != nil {
		slog.Error("Could not load configuration", slog.String("path", cfgPath), slog.Any("Error", err))
		panic("Failed to load configuration")
	}

	// unknown detector keys and bad groupings die here, not per-request
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration invalid", slog.Any("Error", err))
		panic("Failed to validate configuration")
	}

	points, err := Es.NewPointStore(cfg.DataSource, storeBatchSize)
	if err != nil {
		slog.Error("Could not open point store", slog.String("path", cfg.DataSource), slog.Any("Error", err))
		panic("Failed to open point store")
	}
	defer points.Close()

	assembly, err := Er.NewAssembly(cfg, points, Er.NewHTMLRenderer())
	if err != nil {
		slog.Error("Could not build report assembly", slog.Any("Error", err))
		panic("Failed to build report assembly")
	}

	// Tracing backend is picked off the environment: Honeycomb when
	// its key is present, plain OTLP when an endpoint is configured.
	switch {
	case os.Getenv("HONEYCOMB_API_KEY") != "":
		shutdown, err := Eo.InitOTelHNY()
		if err != nil {
			slog.Error("Could not init OTel via Honeycomb", slog.Any("Error", err))
		} else {
			defer shutdown()
		}
	case os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		if _, err := Eo.InitOTelGRF(); err != nil {
			slog.Error("Could not init OTel via OTLP", slog.Any("Error", err))
		}
	}

	view := Ew.NewView(assembly, cfg)
	if err := view.StartServer(); err != nil {
		slog.Error("Problem running report endpoint", slog.Any("Error", err))
		panic("Failed to run report endpoint")
	}
}
