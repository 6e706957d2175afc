// Command processor runs the quality-report pipeline over a directory
// of spreadsheet files and prints the computed statistics as JSON.
// It exercises the same three stages the web service runs, without the
// HTTP surface.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"qcpulse/internal/config"
	"qcpulse/internal/dataprocessing"
	"qcpulse/internal/validation"
)

func main() {
	dir := flag.String("dir", ".", "directory containing the report spreadsheets")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*dir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "processor: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, logger *slog.Logger) error {
	cfg := config.Default()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var filePaths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".xlsx" || ext == ".xls" {
			filePaths = append(filePaths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(filePaths) == 0 {
		return fmt.Errorf("no spreadsheet files found in %s", dir)
	}

	extractor := dataprocessing.NewExtractor(cfg.Pipeline, logger)
	parsed := extractor.ExtractFiles(filePaths)

	validator := validation.NewRowValidator(cfg.Pipeline, logger)
	result := validator.Validate(parsed)
	if validator.ShouldAbort(result) {
		for i, finding := range result.Errors {
			if i == 10 {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %s (%s, sheet %s, row %v)\n",
				finding.Message, finding.Source.FileName, finding.Source.SheetName, finding.Source.RowNumbers)
		}
		return fmt.Errorf("validation failed: %d of %d rows have errors", result.ErrorRows, result.TotalRows)
	}

	analyzer := dataprocessing.NewAnalyzer(cfg.Pipeline, logger)
	stats := analyzer.ComputeStatistics(parsed)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(stats); err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	return nil
}
