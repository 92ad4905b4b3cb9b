package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Extractor is the engine surface the processor needs.
type Extractor interface {
	Run(ctx context.Context, doc entity.SourceDocument) (extract.Result, error)
}

// Observer receives one call per processed document.
type Observer interface {
	ObserveExtraction(channel, outcome string, elapsed time.Duration, dropped int)
}

// Request is one document to process.
type Request struct {
	SourcePath string
	Filename   string
	MediaType  string
	Data       []byte
	// Force re-extracts a document whose content hash is already stored.
	Force bool
}

// Outcome is what happened to a request.
type Outcome struct {
	Record       *entity.StoredRecord
	Deduplicated bool
	// Remediation is the user-facing hint for an empty or failed record.
	Remediation string
}

// Processor coordinates dedupe, extraction, validation and persistence.
type Processor struct {
	logger   *slog.Logger
	engine   Extractor
	records  repository.RecordRepository
	observer Observer
}

func NewProcessor(logger *slog.Logger, engine Extractor, records repository.RecordRepository, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger, engine: engine, records: records}
	if m != nil {
		p.observer = m
	}
	return p
}

// ProcessFile reads path and processes it.
func (p *Processor) ProcessFile(ctx context.Context, path string, force bool) (Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Outcome{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		p.logger.Error("processor.read.failed", "path", abs, "err", err)
		return Outcome{}, common.NewAcquisitionFailed("read "+filepath.Base(abs), err)
	}
	return p.Process(ctx, Request{
		SourcePath: abs,
		Filename:   filepath.Base(abs),
		MediaType:  mime.TypeByExtension(filepath.Ext(abs)),
		Data:       data,
		Force:      force,
	})
}

// Process extracts req and stores the result. Empty records are stored with
// status EMPTY and no error; failures are stored with status FAILED and the
// error is returned.
func (p *Processor) Process(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	sum := sha256.Sum256(req.Data)
	hash := hex.EncodeToString(sum[:])
	ctx = common.WithContentHash(ctx, hash)

	existing, err := p.records.FindByHash(ctx, hash)
	switch {
	case err == nil && !req.Force:
		p.logger.Info("processor.dedup", "file", req.Filename, "record_id", existing.ID, "content_hash", hash)
		p.observe(existing.Channel, metrics.OutcomeDeduplicated, start, 0)
		return Outcome{Record: existing, Deduplicated: true}, nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return Outcome{}, err
	}

	doc := entity.SourceDocument{Filename: req.Filename, MediaType: req.MediaType, Data: req.Data}
	res, runErr := p.engine.Run(ctx, doc)

	stored := &entity.StoredRecord{
		SourcePath:  req.SourcePath,
		Filename:    req.Filename,
		ContentHash: hash,
		Channel:     res.Channel,
		Method:      res.Text.Method,
		Template:    res.Template,
		Record:      res.Record,
	}
	if existing != nil {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}

	switch {
	case runErr == nil:
		stored.Status = constants.RecordStatusExtracted
	case errors.Is(runErr, common.ErrNoDataExtracted):
		stored.Status = constants.RecordStatusEmpty
	default:
		stored.Status = constants.RecordStatusFailed
		stored.Error = runErr.Error()
		stored.Record = entity.ExtractedRecord{
			LineItems: []entity.LineItem{},
			Notes:     []string{common.Remediation(runErr)},
		}
	}
	if stored.Status != constants.RecordStatusFailed {
		if vErr := extract.ValidateRecord(stored.Record); vErr != nil {
			p.logger.Error("processor.validate.failed", "file", req.Filename, "err", vErr)
			stored.Status = constants.RecordStatusFailed
			stored.Error = vErr.Error()
			runErr = vErr
		}
	}

	if err := p.records.Save(ctx, stored); err != nil {
		return Outcome{}, fmt.Errorf("store record: %w", err)
	}

	out := Outcome{Record: stored, Remediation: common.Remediation(runErr)}
	switch stored.Status {
	case constants.RecordStatusFailed:
		p.logger.Error("processor.failed", "file", req.Filename, "record_id", stored.ID, "err", runErr)
		p.observe(stored.Channel, metrics.OutcomeFailed, start, res.Dropped)
		return out, runErr
	case constants.RecordStatusEmpty:
		p.logger.Warn("processor.empty", "file", req.Filename, "record_id", stored.ID)
		p.observe(stored.Channel, metrics.OutcomeEmpty, start, res.Dropped)
	default:
		p.logger.Info("processor.ok",
			"file", req.Filename,
			"record_id", stored.ID,
			"items", len(stored.Record.LineItems),
			"total", stored.Record.TotalAmount,
		)
		p.observe(stored.Channel, metrics.OutcomeExtracted, start, res.Dropped)
	}
	return out, nil
}

func (p *Processor) observe(ch constants.Channel, outcome string, start time.Time, dropped int) {
	if p.observer != nil {
		p.observer.ObserveExtraction(string(ch), outcome, time.Since(start), dropped)
	}
}
