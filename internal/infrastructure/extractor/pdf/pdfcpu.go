package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpuPages validates the file with pdfcpu and scans each page content
// stream for text-showing operators. It handles simple fonts only.
func pdfcpuPages(data []byte) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, textFromContentStream(content))
	}
	return pages, nil
}

// textFromContentStream tokenises a page content stream and concatenates the
// operands of the text-showing operators. Line structure in the stream is
// irrelevant; only operator order matters.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	lex := &contentLexer{data: data}
	var operands []csToken

	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastOperand(operands, tokString); ok {
				sb.WriteString(s.text)
			}
		case "TJ":
			if arr, ok := lastOperand(operands, tokArray); ok {
				for _, item := range arr.items {
					sb.WriteString(item)
				}
			}
		case "'", `"`:
			sb.WriteByte('\n')
			if s, ok := lastOperand(operands, tokString); ok {
				sb.WriteString(s.text)
			}
		case "Td", "TD", "Tm":
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case "T*":
			sb.WriteByte('\n')
		case "ID":
			lex.skipInlineImage()
		}
		operands = operands[:0]
	}

	return collapseSpace(sb.String())
}

type tokenKind int

const (
	tokOther tokenKind = iota
	tokString
	tokArray
	tokOperator
)

type csToken struct {
	kind  tokenKind
	text  string
	items []string
}

func lastOperand(operands []csToken, kind tokenKind) (csToken, bool) {
	if len(operands) == 0 || operands[len(operands)-1].kind != kind {
		return csToken{}, false
	}
	return operands[len(operands)-1], true
}

// contentLexer splits a content stream into operands and operators. Names,
// numbers and dictionaries are reported as tokOther since only strings and
// string arrays carry text.
type contentLexer struct {
	data []byte
	pos  int
}

func (l *contentLexer) next() (csToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return csToken{}, false
	}

	c := l.data[l.pos]
	switch {
	case c == '(':
		l.pos++
		return csToken{kind: tokString, text: l.literal()}, true
	case (c == '<' || c == '>') && l.peek(1) == c:
		l.pos += 2
		return csToken{kind: tokOther}, true
	case c == '<':
		l.pos++
		return csToken{kind: tokString, text: l.hex()}, true
	case c == '[':
		l.pos++
		return csToken{kind: tokArray, items: l.array()}, true
	case c == '/':
		l.pos++
		l.regular()
		return csToken{kind: tokOther}, true
	case isPDFDelimiter(c):
		l.pos++
		return csToken{kind: tokOther}, true
	}

	word := l.regular()
	if isPDFNumber(word) {
		return csToken{kind: tokOther}, true
	}
	return csToken{kind: tokOperator, text: string(word)}, true
}

func (l *contentLexer) peek(off int) byte {
	if l.pos+off >= len(l.data) {
		return 0
	}
	return l.data[l.pos+off]
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *contentLexer) regular() []byte {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return l.data[start:l.pos]
}

// literal reads a (...) string whose opening paren is already consumed.
// Balanced inner parens belong to the string.
func (l *contentLexer) literal() string {
	start := l.pos
	depth := 1
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++
				return decodePDFString(raw)
			}
		}
		l.pos++
	}
	l.pos = len(l.data)
	return decodePDFString(l.data[start:])
}

// hex reads a <...> string whose opening bracket is already consumed. An odd
// trailing digit is padded with zero.
func (l *contentLexer) hex() string {
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if !half {
			hi = v
			half = true
			continue
		}
		out = append(out, hi<<4|v)
		half = false
	}
	if half {
		out = append(out, hi<<4)
	}
	return string(out)
}

// array collects the strings of a [...] operand; numbers between them are
// kerning adjustments and are dropped.
func (l *contentLexer) array() []string {
	var items []string
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return items
		}
		c := l.data[l.pos]
		switch {
		case c == ']':
			l.pos++
			return items
		case c == '(':
			l.pos++
			items = append(items, l.literal())
		case c == '<' && l.peek(1) != '<':
			l.pos++
			items = append(items, l.hex())
		case c == '[':
			l.pos++
			items = append(items, l.array()...)
		case isPDFDelimiter(c):
			l.pos++
		default:
			l.regular()
		}
	}
}

// skipInlineImage jumps over the binary payload between ID and EI.
func (l *contentLexer) skipInlineImage() {
	if l.pos < len(l.data) && isPDFSpace(l.data[l.pos]) {
		l.pos++
	}
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			l.pos > 0 && isPDFSpace(l.data[l.pos-1]) &&
			(l.pos+2 == len(l.data) || isPDFSpace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isPDFNumber(word []byte) bool {
	if len(word) == 0 {
		return false
	}
	for _, c := range word {
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		case '\n':
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

func collapseSpace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
