package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	processor "github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const (
	defaultMaxUpload = 32 << 20
	maxFilenameLen   = 255
	maxListLimit     = 1000
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
)

// Deps wires the service to the rest of the application.
type Deps struct {
	Processor      *processor.Processor
	Records        repository.RecordRepository
	Ingestor       ingest.Ingestor // optional; path ingestion is unavailable without it
	Exporter       *export.Service
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Service implements the operations shared by the gRPC and HTTP transports.
type Service struct {
	processor *processor.Processor
	records   repository.RecordRepository
	ingestor  ingest.Ingestor
	exporter  *export.Service
	metrics   *metrics.Metrics
	maxUpload int64
	logger    *slog.Logger
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	if d.Exporter == nil && d.Records != nil {
		d.Exporter = export.NewService(d.Records, d.Logger)
	}
	return &Service{
		processor: d.Processor,
		records:   d.Records,
		ingestor:  d.Ingestor,
		exporter:  d.Exporter,
		metrics:   d.Metrics,
		maxUpload: d.MaxUploadBytes,
		logger:    d.Logger,
	}
}

// ExtractDocument processes one uploaded document.
func (s *Service) ExtractDocument(ctx context.Context, filename, mediaType string, data []byte, force bool) (processor.Outcome, error) {
	v := common.NewValidator().
		Field("filename", filename, common.Required, common.MaxLength(maxFilenameLen)).
		Field("content", data, common.Required, common.MaxBytes(int(s.maxUpload)))
	if err := v.Error(); err != nil {
		s.logger.Warn("extract request rejected", "filename", filename, "error", err)
		return processor.Outcome{}, err
	}

	s.logger.Info("extracting document", "filename", filename, "bytes", len(data), "force", force,
		"request_id", common.RequestIDFromContext(ctx))
	return s.processor.Process(ctx, processor.Request{
		Filename:  filename,
		MediaType: mediaType,
		Data:      data,
		Force:     force,
	})
}

func (s *Service) GetRecord(ctx context.Context, id string) (*entity.StoredRecord, error) {
	rid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.records.Get(ctx, rid)
}

func (s *Service) ListRecords(ctx context.Context, status string, limit int) ([]*entity.StoredRecord, error) {
	filter, err := listFilter(status, limit)
	if err != nil {
		return nil, err
	}
	return s.records.List(ctx, filter)
}

// UpdateRecord replaces the extracted fields of a stored record with a
// manually corrected version. body must satisfy the record schema.
func (s *Service) UpdateRecord(ctx context.Context, id string, body []byte) (*entity.StoredRecord, error) {
	rid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := extract.ValidateRecordJSON(body); err != nil {
		s.logger.Warn("record update rejected", "id", id, "error", err)
		return nil, err
	}
	var rec entity.ExtractedRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if rec.Notes == nil {
		rec.Notes = []string{}
	}

	stored, err := s.records.Get(ctx, rid)
	if err != nil {
		return nil, err
	}
	stored.Record = rec
	stored.Error = ""
	stored.Status = constants.RecordStatusExtracted
	if rec.IsEmpty() {
		stored.Status = constants.RecordStatusEmpty
	}
	if err := s.records.Save(ctx, stored); err != nil {
		return nil, err
	}
	s.logger.Info("record updated", "id", stored.ID, "status", stored.Status)
	return stored, nil
}

func (s *Service) IngestPath(ctx context.Context, path string, force bool) (ingest.IngestionResult, error) {
	if s.ingestor == nil {
		return ingest.IngestionResult{}, fmt.Errorf("%w: path ingestion is not enabled", common.ErrInvalidInput)
	}
	if strings.TrimSpace(path) == "" {
		return ingest.IngestionResult{}, fmt.Errorf("%w: path is required", common.ErrInvalidInput)
	}
	return s.ingestor.IngestPath(ctx, path, force)
}

func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden, force bool) ([]ingest.IngestionResult, ingest.DirStats, error) {
	if s.ingestor == nil {
		return nil, ingest.DirStats{}, fmt.Errorf("%w: path ingestion is not enabled", common.ErrInvalidInput)
	}
	return s.ingestor.IngestDirectory(ctx, root, skipHidden, force)
}

// Export renders stored records; it returns the payload and its content type.
func (s *Service) Export(ctx context.Context, format, status string) ([]byte, string, error) {
	filter, err := listFilter(status, 0)
	if err != nil {
		return nil, "", err
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		data, err := s.exporter.ExportXLSX(ctx, filter)
		return data, contentTypeXLSX, err
	case FormatCSV:
		data, err := s.exporter.ExportCSV(ctx, filter)
		return data, contentTypeCSV, err
	default:
		return nil, "", fmt.Errorf("%w: format must be xlsx or csv", common.ErrInvalidInput)
	}
}

// Ping checks the record store.
func (s *Service) Ping(ctx context.Context) error {
	return s.records.Ping(ctx)
}

func parseID(id string) (uuid.UUID, error) {
	v := common.NewValidator().Field("id", strings.TrimSpace(id), common.Required, common.UUID)
	if v.HasErrors() {
		return uuid.Nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, v.ErrorMessage())
	}
	return uuid.MustParse(strings.TrimSpace(id)), nil
}

func listFilter(status string, limit int) (repository.ListFilter, error) {
	f := repository.ListFilter{Limit: limit}
	switch st := constants.RecordStatus(strings.ToUpper(strings.TrimSpace(status))); st {
	case "":
	case constants.RecordStatusExtracted, constants.RecordStatusEmpty, constants.RecordStatusFailed:
		f.Status = st
	default:
		return f, fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, status)
	}
	if limit < 0 || limit > maxListLimit {
		return f, fmt.Errorf("%w: limit must be between 0 and %d", common.ErrInvalidInput, maxListLimit)
	}
	return f, nil
}
