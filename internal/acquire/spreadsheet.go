package acquire

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// SpreadsheetReader flattens the first worksheet of a workbook (or a CSV file)
// into comma-delimited text, one line per row.
type SpreadsheetReader interface {
	Flatten(data []byte, ext string) (string, error)
}

// ExcelReader reads OOXML workbooks with excelize, legacy BIFF workbooks with
// extrame/xls and CSV with encoding/csv.
type ExcelReader struct{}

// oleSignature starts every compound-document (BIFF) workbook.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func (ExcelReader) Flatten(data []byte, ext string) (string, error) {
	var (
		rows [][]string
		err  error
	)
	if constants.NormalizeExt(ext) == "csv" {
		rows, err = readCSV(data)
	} else {
		rows, err = readFirstSheet(data)
	}
	if err != nil {
		return "", err
	}
	return flattenRows(rows)
}

func readFirstSheet(data []byte) ([][]string, error) {
	if bytes.HasPrefix(data, oleSignature) {
		return readLegacySheet(data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// readLegacySheet reads the first sheet of an .xls workbook. The decoder panics
// on some damaged files; those come back as errors.
func readLegacySheet(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("open legacy workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("legacy workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("legacy workbook has no readable sheet")
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// flattenRows writes rows as CSV lines, keeping cell adjacency and dropping
// trailing empty cells. Blank rows become blank lines.
func flattenRows(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		end := len(row)
		for end > 0 && strings.TrimSpace(row[end-1]) == "" {
			end--
		}
		cells := make([]string, end)
		for i := 0; i < end; i++ {
			cells[i] = strings.TrimSpace(strings.ReplaceAll(row[i], "\n", " "))
		}
		if err := w.Write(cells); err != nil {
			return "", fmt.Errorf("flatten row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flatten rows: %w", err)
	}
	return buf.String(), nil
}
