package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const (
	recordsSheet = "Records"
	itemsSheet   = "Line Items"
	notesLimit   = 140
)

var recordHeaders = []string{
	"Record ID",
	"File",
	"Status",
	"Counterparty",
	"Document ID",
	"Document Date",
	"Due Date",
	"Terms",
	"Description",
	"Total",
	"Items",
	"Notes",
}

var itemHeaders = []string{
	"Record ID",
	"Document ID",
	"Line",
	"Quantity",
	"Description",
	"Unit Price",
	"Amount",
	"Date",
}

// Service is a thin façade over the record store that produces spreadsheet exports.
type Service struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// ExportXLSX returns a workbook with a Records sheet and a Line Items sheet.
func (s *Service) ExportXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()
	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default workbook starts with Sheet1; rename it so the records sheet opens first
	if err := f.SetSheetName(f.GetSheetName(0), recordsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, recordsSheet, 1, toAny(recordHeaders))
	writeRow(f, itemsSheet, 1, toAny(itemHeaders))

	itemRow := 2
	for i, r := range recs {
		writeRow(f, recordsSheet, i+2, recordRow(r))
		for n, it := range r.Record.LineItems {
			writeRow(f, itemsSheet, itemRow, itemRowValues(r, n, it))
			itemRow++
		}
	}

	_ = f.SetColWidth(recordsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(recordsSheet, "B", "B", 28) // file
	_ = f.SetColWidth(recordsSheet, "D", "D", 32) // counterparty
	_ = f.SetColWidth(recordsSheet, "E", "H", 14)
	_ = f.SetColWidth(recordsSheet, "I", "I", 48) // description
	_ = f.SetColWidth(recordsSheet, "L", "L", 60) // notes
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "E", "E", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"records", len(recs),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportCSV returns one row per line item, with record fields repeated.
// Records without items get a single row with empty item columns.
func (s *Service) ExportCSV(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()
	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(append([]string{}, recordHeaders[:len(recordHeaders)-2]...), itemHeaders[2:]...)
	_ = w.Write(header)

	rows := 0
	for _, r := range recs {
		base := stringify(recordRow(r)[:len(recordHeaders)-2])
		if len(r.Record.LineItems) == 0 {
			_ = w.Write(append(base, make([]string, len(itemHeaders)-2)...))
			rows++
			continue
		}
		for n, it := range r.Record.LineItems {
			_ = w.Write(append(append([]string{}, base...), stringify(itemRowValues(r, n, it)[2:])...))
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok", "records", len(recs), "rows", rows, "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func recordRow(r *entity.StoredRecord) []any {
	rec := r.Record
	return []any{
		r.ID.String(),
		r.Filename,
		string(r.Status),
		rec.CounterpartyName,
		rec.DocumentID,
		rec.DocumentDate,
		rec.DueDate,
		rec.Terms,
		rec.Description,
		rec.TotalAmount,
		len(rec.LineItems),
		truncate(strings.Join(rec.Notes, "; "), notesLimit),
	}
}

func itemRowValues(r *entity.StoredRecord, n int, it entity.LineItem) []any {
	return []any{
		r.ID.String(),
		r.Record.DocumentID,
		n + 1,
		it.Quantity,
		it.Description,
		it.UnitPrice,
		it.Amount,
		it.Date,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func stringify(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case string:
			out[i] = x
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
