package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("extract-batch")
	var (
		dir      = fs.StringLong("dir", "", "directory to process documents from (required)")
		out      = fs.StringLong("out", "", "output .xlsx or .csv path (optional, defaults to parent directory)")
		status   = fs.StringLong("status", "", "only export records with this status (EXTRACTED, EMPTY or FAILED)")
		workers  = fs.IntLong("workers", cfg.Queue.Workers, "concurrent extraction workers")
		force    = fs.BoolLong("force", "re-extract documents that are already stored")
		hidden   = fs.BoolLong("include-hidden", "include hidden files and directories")
		store    = fs.StringLong("store", cfg.Store.Driver, "record store driver: sqlite, postgres or bolt")
		dsn      = fs.StringLong("dsn", cfg.Store.DSN, "record store DSN or file path")
		logLevel = fs.StringLong("log-level", "info", "debug, info, warn or error")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		printError("error: %v\n", err)
		os.Exit(1)
	}

	// Validate required flags
	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "invoices.xlsx")
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(*out)), ".")
	if format != "xlsx" && format != "csv" {
		printError("Error: --out must end in .xlsx or .csv\n")
		os.Exit(1)
	}
	filter := repository.ListFilter{Status: constants.RecordStatus(strings.ToUpper(*status))}

	logger := app.NewLogger(*logLevel, "json")
	ctx := context.Background()

	cfg.Queue.Workers = *workers
	cfg.Store.Driver = *store
	cfg.Store.DSN = *dsn
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var processed, failures atomic.Uint32
	queue := async.NewWorkerQueue(async.ConfigFrom(cfg.Queue), func(ctx context.Context, job async.Job) error {
		outcome, err := a.Processor.ProcessFile(ctx, job.Path, job.Force)
		if err != nil {
			failures.Add(1)
			return err
		}
		if !outcome.Deduplicated {
			processed.Add(1)
		}
		return nil
	}, logger, async.WithMetrics(a.Metrics))

	ingestor := ingest.NewFSIngestor(a.Records, queue, logger)

	logger.Info("starting ingestion", "dir", *dir, "workers", cfg.Queue.Workers)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, !*hidden, *force)
	queue.Shutdown(ctx)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("file skipped", "path", r.SourcePath, "error", r.Err)
		}
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"queued", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	// Export
	exporter := export.NewService(a.Records, logger)
	var data []byte
	if format == "csv" {
		data, err = exporter.ExportCSV(ctx, filter)
	} else {
		data, err = exporter.ExportXLSX(ctx, filter)
	}
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed.Load(),
		"failures", failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files matched: %d\n", stats.Matched)
	fmt.Printf("- Files processed: %d\n", processed.Load())
	fmt.Printf("- Already stored: %d\n", stats.Deduplicated)
	fmt.Printf("- Failures: %d\n", failures.Load()+stats.Failed)
	fmt.Printf("- Output: %s\n", *out)
}
