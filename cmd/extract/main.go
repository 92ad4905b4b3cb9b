package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
)

type diagnostics struct {
	Channel  string            `json:"channel"`
	Method   string            `json:"method"`
	Template string            `json:"template"`
	Strategy string            `json:"strategy"`
	Dropped  int               `json:"dropped"`
	Sources  map[string]string `json:"sources"`
}

type output struct {
	Record      entity.ExtractedRecord `json:"record"`
	Remediation string                 `json:"remediation,omitempty"`
	Diagnostics *diagnostics           `json:"diagnostics,omitempty"`
}

func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("extract")
	var (
		templatesFile = fs.StringLong("templates", cfg.Engine.TemplatesFile, "YAML vendor template file")
		noOCR         = fs.BoolLong("no-ocr", "do not run OCR on scanned documents")
		verbose       = fs.BoolLong("verbose", "include template, strategy and field sources")
		logLevel      = fs.StringLong("log-level", "warn", "debug, info, warn or error")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE")); err != nil || len(fs.GetArgs()) != 1 {
		fmt.Fprintf(os.Stderr, "usage: extract [flags] <file>\n%s\n", ffhelp.Flags(fs))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(2)
	}
	logger := app.NewLogger(*logLevel, "text")
	cfg.Engine.TemplatesFile = *templatesFile

	path := fs.GetArgs()[0]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	eng, err := app.BuildEngine(ctx, cfg, !*noOCR, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	res, err := eng.Run(ctx, entity.SourceDocument{
		Filename:  filepath.Base(path),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Data:      data,
	})
	if err != nil && !errors.Is(err, common.ErrNoDataExtracted) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := common.Remediation(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}

	out := output{Record: res.Record, Remediation: common.Remediation(err)}
	if *verbose {
		out.Diagnostics = diagnose(res)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("write output", "error", err)
		os.Exit(1)
	}
	if errors.Is(err, common.ErrNoDataExtracted) {
		os.Exit(3)
	}
}

func diagnose(res extract.Result) *diagnostics {
	d := &diagnostics{
		Channel:  string(res.Channel),
		Method:   string(res.Text.Method),
		Template: res.Template,
		Strategy: res.Strategy,
		Dropped:  res.Dropped,
		Sources:  map[string]string{},
	}
	for f, src := range res.Sources {
		d.Sources[string(f)] = src
	}
	return d
}
