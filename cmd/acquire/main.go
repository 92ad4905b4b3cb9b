package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("acquire")
	var (
		backend = fs.StringLong("ocr-backend", cfg.OCR.Backend, "tesseract, azure or gemini")
		lang    = fs.StringLong("lang", cfg.Engine.OCRLanguage, "OCR language")
		timeout = fs.DurationLong("timeout", 2*time.Minute, "overall time limit")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE")); err != nil || len(fs.GetArgs()) != 1 {
		fmt.Fprintf(os.Stderr, "usage: acquire [flags] <file>\n%s\n", ffhelp.Flags(fs))
		os.Exit(2)
	}
	logger := app.NewLogger("info", "json")
	cfg.OCR.Backend = *backend
	cfg.Engine.OCRLanguage = *lang

	path := fs.GetArgs()[0]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	eng, err := app.BuildEngine(ctx, cfg, true, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	doc := &entity.SourceDocument{
		Filename:  filepath.Base(path),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Data:      data,
	}
	start := time.Now()
	text, err := eng.Acquirer.Acquire(ctx, doc)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text acquisition failed",
			"error", err, "remediation", common.Remediation(err), "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text acquisition OK",
		"channel", doc.Channel,
		"method", text.Method,
		"pages", text.Pages,
		"confidence", text.Confidence,
		"warnings", text.Warnings,
		"bytes", len(text.Content),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(text.Content)
}
