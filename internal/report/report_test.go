package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

func sampleRows() []Row {
	ok := domain.NewDocumentFromBytes("a.txt", "text/plain", []byte("hello"))
	bad := domain.NewDocumentFromBytes("b.pdf", "", []byte("junk"))
	return []Row{
		NewRow("docs/a.txt", ok, &domain.ExtractionResult{Text: "hello", Format: domain.FormatPlainText}, nil, 1500*time.Microsecond),
		NewRow("docs/b.pdf", bad, nil, domain.NewDecodeFailure(domain.FormatPDF, errors.New("invalid header")), time.Millisecond),
	}
}

func TestNewRowFromFailure(t *testing.T) {
	rows := sampleRows()

	if rows[0].Outcome != domain.OutcomeOK || rows[0].Chars != 5 || rows[0].Format != domain.FormatPlainText {
		t.Fatalf("unexpected success row %+v", rows[0])
	}
	failed := rows[1]
	if failed.Outcome != "decode_error" || failed.Format != domain.FormatPDF || failed.Chars != 0 {
		t.Fatalf("unexpected failure row %+v", failed)
	}
	if failed.Detail != "invalid header" {
		t.Fatalf("expected failure detail, got %q", failed.Detail)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "csv", sampleRows()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[0][0] != "path" || records[1][4] != "1.500" || records[2][2] != "decode_error" {
		t.Fatalf("unexpected csv content %v", records)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "XLSX", sampleRows()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "docs/a.txt" || rows[1][3] != "5" || rows[2][5] != "invalid header" {
		t.Fatalf("unexpected xlsx content %v", rows)
	}
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
