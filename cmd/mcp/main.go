package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/neurotask/internal/adapters/mcp"
	"github.com/kirillkom/neurotask/internal/bootstrap"
	"github.com/kirillkom/neurotask/internal/config"
	"github.com/kirillkom/neurotask/internal/observability/logging"
)

var version = "dev"

func main() {
	root := flag.String("root", ".", "directory extract_document paths are resolved in")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Service: "mcp", Record: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv, err := mcpadapter.NewServer(app.Extractor, *root, version)
	if err != nil {
		logger.Error("mcp_init_failed", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	logger.Info("mcp_serving_stdio", "root", *root)
	if err := server.ServeStdio(srv.MCPServer()); err != nil {
		logger.Error("mcp_serve_failed", "error", err)
		os.Exit(1)
	}
}
