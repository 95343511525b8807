package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
)

const (
	ToolExtractDocument  = "extract_document"
	ToolClassifyDocument = "classify_document"
	ToolSupportedFormats = "supported_formats"
)

// Server exposes the extraction pipeline as MCP tools. Paths given to
// extract_document are resolved inside a single root directory.
type Server struct {
	extractor ports.TextExtractor
	root      *os.Root
	mcp       *server.MCPServer
}

func NewServer(extractor ports.TextExtractor, rootDir, version string) (*Server, error) {
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if strings.TrimSpace(rootDir) == "" {
		rootDir = "."
	}
	root, err := os.OpenRoot(rootDir)
	if err != nil {
		return nil, fmt.Errorf("open document root: %w", err)
	}

	s := &Server{extractor: extractor, root: root}
	s.mcp = server.NewMCPServer("doctext", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s, nil
}

func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

func (s *Server) Close() error {
	return s.root.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolExtractDocument,
		mcp.WithDescription("Extract plain text from a document (txt, md, csv, json, xml, rtf, html, pdf, docx)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the server root")),
		mcp.WithString("media_type", mcp.Description("Declared media type; overrides the file suffix when recognised")),
	), s.handleExtract)

	s.mcp.AddTool(mcp.NewTool(ToolClassifyDocument,
		mcp.WithDescription("Classify a document by media type and file name without reading it."),
		mcp.WithString("name", mcp.Description("File name, used when the media type is unknown")),
		mcp.WithString("media_type", mcp.Description("Declared media type")),
	), s.handleClassify)

	s.mcp.AddTool(mcp.NewTool(ToolSupportedFormats,
		mcp.WithDescription("List the media types and file suffixes the extractor accepts."),
	), s.handleFormats)
}

func (s *Server) handleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mediaType := req.GetString("media_type", "")

	name := filepath.ToSlash(filepath.Clean(path))
	// A missing file surfaces as a read failure from the extractor.
	size := int64(-1)
	if info, statErr := s.root.Stat(name); statErr == nil && info.Mode().IsRegular() {
		size = info.Size()
	}

	doc := domain.NewDocument(filepath.Base(name), mediaType, size, func(context.Context) (io.ReadCloser, error) {
		return s.root.Open(name)
	})
	result, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		slog.Warn("mcp_extract_failed", "path", path, "error", err)
		return failureResult(err), nil
	}

	return jsonResult(map[string]any{
		"name":   doc.Name(),
		"format": result.Format,
		"chars":  result.Chars(),
		"text":   result.Text,
	})
}

func (s *Server) handleClassify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	mediaType := req.GetString("media_type", "")
	if strings.TrimSpace(name) == "" && strings.TrimSpace(mediaType) == "" {
		return mcp.NewToolResultError("name or media_type is required"), nil
	}

	format := domain.Classify(mediaType, name)
	return jsonResult(map[string]any{
		"format":    format,
		"strategy":  format.Strategy(),
		"supported": format.Supported(),
	})
}

func (s *Server) handleFormats(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"media_types": domain.SupportedMediaTypes(),
		"suffixes":    domain.SupportedSuffixes(),
	})
}

func failureResult(err error) *mcp.CallToolResult {
	payload := map[string]any{"kind": "error", "detail": err.Error()}
	if failure, ok := domain.AsExtractionFailure(err); ok {
		payload = map[string]any{
			"kind":   failure.Kind,
			"format": failure.Format,
			"detail": failure.Detail,
		}
	}
	raw, _ := json.Marshal(payload)
	return mcp.NewToolResultError(string(raw))
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
