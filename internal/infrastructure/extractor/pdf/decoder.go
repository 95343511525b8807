package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

const (
	EngineLedongthuc = "ledongthuc"
	EnginePDFCPU     = "pdfcpu"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

var (
	errEmptyPDF  = errors.New("empty PDF content")
	errBadHeader = errors.New("missing %PDF- header")
)

// Decoder extracts the text layer of a PDF, page by page in page order.
// Pages without a text layer contribute nothing; there is no OCR.
type Decoder struct {
	engine string
}

func New(engine string) (*Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineLedongthuc:
		return &Decoder{engine: EngineLedongthuc}, nil
	case EnginePDFCPU:
		return &Decoder{engine: EnginePDFCPU}, nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", engine)
	}
}

func (d *Decoder) Engine() string { return d.engine }

func (d *Decoder) Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errEmptyPDF
	}
	if !bytes.HasPrefix(leadingTrim(data), []byte("%PDF-")) {
		return "", errBadHeader
	}

	var (
		pages []string
		err   error
	)
	if d.engine == EnginePDFCPU {
		pages, err = pdfcpuPages(data)
	} else {
		pages, err = ledongthucPages(data)
	}
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

func ledongthucPages(data []byte) (pages []string, err error) {
	// The parser panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func joinPages(pages []string) string {
	var sb strings.Builder
	for _, page := range pages {
		text := strings.TrimSpace(page)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(PageSeparator)
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// leadingTrim skips whitespace some producers emit before the header.
func leadingTrim(data []byte) []byte {
	if len(data) > 1024 {
		data = data[:1024]
	}
	return bytes.TrimLeft(data, " \t\r\n\x00")
}
