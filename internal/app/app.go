// Package app wires configuration into the engine, store and processor shared
// by the command-line binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/acquire"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/lineitems"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	processor "github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// Engine is an extraction engine plus the OCR backend it owns.
type Engine struct {
	*extract.Engine
	Acquirer   *acquire.Pipeline
	recognizer ocr.Recognizer
}

// Close releases the OCR backend.
func (e *Engine) Close() error {
	if e.recognizer == nil {
		return nil
	}
	return ocr.Close(e.recognizer)
}

// BuildEngine assembles acquisition, OCR, templates and tolerance from cfg.
// With withOCR false, scanned documents fail as unreadable instead of being recognized.
func BuildEngine(ctx context.Context, cfg *common.Config, withOCR bool, logger *slog.Logger) (*Engine, error) {
	reg := templates.DefaultRegistry()
	if cfg.Engine.TemplatesFile != "" {
		var err error
		if reg, err = templates.LoadRegistryFile(cfg.Engine.TemplatesFile); err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		if err := lineitems.CheckStrategies(reg); err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		logger.Info("templates loaded", "file", cfg.Engine.TemplatesFile, "names", reg.Names())
	}

	var opts []acquire.Option
	var recognizer ocr.Recognizer
	if withOCR {
		r, err := ocr.New(ctx, OCRConfig(cfg.OCR), logger)
		if err != nil {
			return nil, fmt.Errorf("ocr backend: %w", err)
		}
		recognizer = r
		opts = append(opts, acquire.WithRecognizer(r))
	}

	acq := acquire.NewPipeline(acquire.Config{
		MinTextChars: cfg.Engine.MinTextChars,
		RasterScale:  cfg.Engine.RasterScale,
		Language:     cfg.Engine.OCRLanguage,
	}, logger, opts...)

	eng := extract.New(acq, logger,
		extract.WithRegistry(reg),
		extract.WithTolerance(lineitems.Tolerance{Ratio: cfg.Engine.ToleranceRatio, Floor: cfg.Engine.ToleranceFloor}),
		extract.WithDescriptionLimit(cfg.Engine.DescriptionLimit),
	)
	return &Engine{Engine: eng, Acquirer: acq, recognizer: recognizer}, nil
}

// OCRConfig maps the application OCR settings.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Backend:        c.Backend,
		Tesseract:      c.Tesseract,
		TessdataDir:    c.TessdataDir,
		PSM:            c.PSM,
		OEM:            c.OEM,
		AzureEndpoint:  c.AzureEndpoint,
		AzureKey:       c.AzureKey,
		GeminiAPIKey:   c.GeminiAPIKey,
		GeminiModel:    c.GeminiModel,
		Preprocess:     c.Preprocess,
		RequestTimeout: c.RequestTimeout,
	}
}

// App holds everything a long-running binary needs.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Engine    *Engine
	Records   repository.RecordRepository
	Processor *processor.Processor
}

// New validates cfg, builds the engine and opens the record store.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng, err := BuildEngine(ctx, cfg, true, logger)
	if err != nil {
		return nil, err
	}
	records, err := repository.Open(ctx, repository.ConfigFrom(cfg.Store), logger)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	m := metrics.New()
	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Engine:    eng,
		Records:   records,
		Processor: processor.NewProcessor(logger, eng, records, m),
	}, nil
}

// Close releases the store and the OCR backend.
func (a *App) Close() {
	if err := a.Records.Close(); err != nil {
		a.Logger.Error("failed to close store", "error", err)
	}
	if err := a.Engine.Close(); err != nil {
		a.Logger.Error("failed to close ocr backend", "error", err)
	}
}
