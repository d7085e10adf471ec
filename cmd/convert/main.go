package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"cna-data-service/internal/config"
	"cna-data-service/internal/converter"
	"cna-data-service/internal/export"
	"cna-data-service/internal/jsonfile"
	"cna-data-service/pkg/logger"
)

func main() {
	var (
		configPath    = flag.String("config", ".env", "Configuration file path")
		rawMinutePath = flag.String("raw-minute-path", "", "Raw minute jsonl path (overrides RAW_MINUTE_PATH)")
		outputPath    = flag.String("output-path", "", "Canonical frames path (overrides CANONICAL_PATH)")
		maxFrames     = flag.Int("max-frames", 0, "Most recent frames to retain (overrides MAX_FRAMES)")
		exportFormat  = flag.String("export-format", "", "Optional flat export: csv, parquet or json")
		logLevel      = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *rawMinutePath != "" {
		cfg.RawMinutePath = *rawMinutePath
	}
	if *outputPath != "" {
		cfg.CanonicalPath = *outputPath
	}
	if *maxFrames >= 1000 {
		cfg.MaxFrames = *maxFrames
	}
	if *exportFormat != "" {
		cfg.ExportFormat = *exportFormat
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	summary, err := converter.Run(cfg.RawMinutePath, cfg.CanonicalPath, cfg.MaxFrames)
	if err != nil {
		logrus.Errorf("Conversion failed: %v", err)
		os.Exit(1)
	}

	if cfg.ExportFormat != "" {
		if err := runExport(cfg); err != nil {
			logrus.Errorf("Export failed: %v", err)
			os.Exit(1)
		}
	}

	encoded, _ := json.Marshal(summary)
	fmt.Println(string(encoded))
}

func runExport(cfg *config.Config) error {
	saver := export.NewFrameSaver(cfg.ExportFormat)
	if saver == nil {
		return fmt.Errorf("unsupported export format %q (use: csv, parquet, json)", cfg.ExportFormat)
	}

	var doc converter.Document
	if !jsonfile.ReadInto(cfg.CanonicalPath, &doc) {
		return fmt.Errorf("cannot read canonical frames from %s", cfg.CanonicalPath)
	}

	path := cfg.ExportPath + "." + saver.Extension()
	if err := jsonfile.EnsureParentDir(path); err != nil {
		return err
	}
	if err := saver.Save(export.FromFrames(doc.Frames), path); err != nil {
		return err
	}
	logrus.Infof("exported %d bars to %s", len(doc.Frames), path)
	return nil
}
