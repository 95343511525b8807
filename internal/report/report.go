package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	sheetName = "Extractions"
)

var header = []string{"path", "format", "outcome", "chars", "duration_ms", "detail"}

// Row summarises one extraction of a batch run. Extracted text is not part of
// the report.
type Row struct {
	Path     string
	Format   domain.FormatClass
	Outcome  domain.ExtractionOutcome
	Chars    int
	Duration time.Duration
	Detail   string
}

func NewRow(path string, doc *domain.Document, result *domain.ExtractionResult, err error, elapsed time.Duration) Row {
	row := Row{
		Path:     path,
		Outcome:  domain.OutcomeOf(err),
		Chars:    result.Chars(),
		Duration: elapsed,
	}
	if doc != nil {
		row.Format = domain.Classify(doc.MediaType(), doc.Name())
	}
	if result != nil {
		row.Format = result.Format
	}
	if failure, ok := domain.AsExtractionFailure(err); ok {
		row.Detail = failure.Detail
	} else if err != nil {
		row.Detail = err.Error()
	}
	return row
}

func (r Row) values() []string {
	return []string{
		r.Path,
		string(r.Format),
		string(r.Outcome),
		strconv.Itoa(r.Chars),
		strconv.FormatFloat(float64(r.Duration.Microseconds())/1000.0, 'f', 3, 64),
		r.Detail,
	}
}

// Write renders rows in the named format.
func Write(w io.Writer, format string, rows []Row) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV, "":
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "write report", fmt.Errorf("unknown report format %q", format))
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.values()); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style xlsx header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.Path,
			string(row.Format),
			string(row.Outcome),
			row.Chars,
			float64(row.Duration.Microseconds()) / 1000.0,
			row.Detail,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", row.Path, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 48); err != nil {
		return fmt.Errorf("size path column: %w", err)
	}
	if err := f.SetColWidth(sheetName, "F", "F", 64); err != nil {
		return fmt.Errorf("size detail column: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
