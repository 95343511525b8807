package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

// FormatClass is the closed set of document categories the pipeline knows.
type FormatClass string

const (
	FormatPlainText    FormatClass = "plain_text"
	FormatPDF          FormatClass = "pdf"
	FormatWordDocument FormatClass = "word_document"
	FormatRichText     FormatClass = "rich_text"
	FormatHTML         FormatClass = "html"
	FormatCSV          FormatClass = "csv"
	FormatJSON         FormatClass = "json"
	FormatMarkdown     FormatClass = "markdown"
	FormatXML          FormatClass = "xml"
	FormatUnsupported  FormatClass = "unsupported"
)

// Strategy is the decode path selected for a format class.
type Strategy string

const (
	StrategyPassthrough Strategy = "passthrough"
	StrategyMarkup      Strategy = "markup"
	StrategyPDF         Strategy = "pdf"
	StrategyWord        Strategy = "word"
	StrategyNone        Strategy = "none"
)

var mediaTypeFormats = map[string]FormatClass{
	"text/plain":      FormatPlainText,
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatWordDocument,
	"application/msword": FormatWordDocument,
	"application/rtf":    FormatRichText,
	"text/html":          FormatHTML,
	"text/csv":           FormatCSV,
	"application/json":   FormatJSON,
	"text/markdown":      FormatMarkdown,
	"application/xml":    FormatXML,
}

var suffixFormats = map[string]FormatClass{
	".txt":  FormatPlainText,
	".pdf":  FormatPDF,
	".docx": FormatWordDocument,
	".doc":  FormatWordDocument,
	".rtf":  FormatRichText,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".csv":  FormatCSV,
	".json": FormatJSON,
	".md":   FormatMarkdown,
	".xml":  FormatXML,
}

// Classify picks the format class from the declared media type and the file
// name. The declared type wins when both are recognised; the suffix is only
// consulted when the declared type is empty or unknown. The payload is never
// inspected.
func Classify(mediaType, name string) FormatClass {
	if format, ok := mediaTypeFormats[NormalizeMediaType(mediaType)]; ok {
		return format
	}
	if format, ok := suffixFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return format
	}
	return FormatUnsupported
}

// NormalizeMediaType lower-cases the type and drops parameters such as
// charset, so "Text/Plain; charset=utf-8" matches "text/plain".
func NormalizeMediaType(mediaType string) string {
	trimmed := strings.TrimSpace(mediaType)
	if trimmed == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(trimmed); err == nil {
		return parsed
	}
	return strings.ToLower(trimmed)
}

func (f FormatClass) Strategy() Strategy {
	switch f {
	case FormatPlainText, FormatRichText, FormatCSV, FormatJSON, FormatMarkdown, FormatXML:
		return StrategyPassthrough
	case FormatHTML:
		return StrategyMarkup
	case FormatPDF:
		return StrategyPDF
	case FormatWordDocument:
		return StrategyWord
	default:
		return StrategyNone
	}
}

func (f FormatClass) Supported() bool {
	return f.Strategy() != StrategyNone
}

// SupportedMediaTypes lists the declared types the classifier recognises.
func SupportedMediaTypes() []string {
	return []string{
		"text/plain",
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword",
		"application/rtf",
		"text/html",
		"text/csv",
		"application/json",
		"text/markdown",
		"application/xml",
	}
}

// SupportedSuffixes lists the file suffixes the classifier recognises.
func SupportedSuffixes() []string {
	return []string{".txt", ".pdf", ".docx", ".doc", ".rtf", ".html", ".htm", ".csv", ".json", ".md", ".xml"}
}
