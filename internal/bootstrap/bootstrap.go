package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/neurotask/internal/config"
	"github.com/kirillkom/neurotask/internal/core/ports"
	"github.com/kirillkom/neurotask/internal/core/usecase"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/loader"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/markup"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/neurotask/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/neurotask/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/neurotask/internal/infrastructure/queue/nats"
	"github.com/kirillkom/neurotask/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/neurotask/internal/infrastructure/resilience"
	"github.com/kirillkom/neurotask/internal/infrastructure/storage/localfs"
	s3storage "github.com/kirillkom/neurotask/internal/infrastructure/storage/s3"
)

// Options selects which parts of the graph a binary needs.
type Options struct {
	Service string
	// Worker connects NATS and staging storage so the binary can serve
	// remote requests with the in-process pipeline.
	Worker bool
	// Record wraps the extractor with the audit log and Observer.
	Record   bool
	Observer ports.ExtractionObserver
	// Planner builds the task planner for the configured LLM provider.
	Planner bool
}

type App struct {
	Config config.Config

	// Pipeline is always the in-process extraction pipeline.
	Pipeline ports.TextExtractor
	// Extractor is what inbound adapters call: the pipeline or the NATS
	// client, optionally wrapped with recording.
	Extractor ports.TextExtractor
	Planner   ports.TaskPlanner
	History   ports.ExtractionHistory
	Storage   ports.ObjectStorage
	NATS      *nats.Conn

	closers []func()
}

// NewPipeline wires the loader, the markup stripper and both container
// decoders into the extraction use case.
func NewPipeline(cfg config.Config) (*usecase.ExtractTextUseCase, error) {
	pdfDecoder, err := pdf.New(cfg.PDFEngine)
	if err != nil {
		return nil, fmt.Errorf("init pdf decoder: %w", err)
	}
	return usecase.NewExtractTextUseCase(
		loader.New(cfg.ExtractMaxBytes),
		markup.NewStripper(),
		pdfDecoder,
		docx.New(),
	), nil
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	app.Pipeline = pipeline
	app.Extractor = pipeline

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		BreakerEnabled:   cfg.BreakerEnabled,
	}, resilience.WithLogger(slog.Default()))

	remote := cfg.ExtractMode == config.ExtractModeRemote && !opts.Worker
	if remote || opts.Worker {
		storage, err := newStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.Storage = storage

		conn, err := natsqueue.Connect(cfg.NATSURL, natsqueue.Options{Name: opts.Service})
		if err != nil {
			return nil, fmt.Errorf("init nats: %w", err)
		}
		app.NATS = conn
		app.closers = append(app.closers, func() { _ = conn.Drain() })
	}
	if remote {
		app.Extractor = natsqueue.NewRemoteExtractor(app.NATS, app.Storage, natsqueue.ClientOptions{
			Subject:            cfg.NATSSubject,
			RequestTimeout:     time.Duration(cfg.NATSRequestTimeoutSeconds) * time.Second,
			ResilienceExecutor: executor,
		})
	}

	if opts.Record {
		extractionLog, history, err := app.openExtractionLog(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.History = history
		app.Extractor = usecase.NewRecordingExtractor(app.Extractor, extractionLog, opts.Observer)
	}

	if opts.Planner {
		generator, err := app.newGenerator(ctx, cfg, executor)
		if err != nil {
			return nil, err
		}
		if generator != nil {
			app.Planner = usecase.NewPlanTasksUseCase(generator)
		}
	}

	slog.Info("bootstrap_ready",
		"service", opts.Service,
		"extract_mode", cfg.ExtractMode,
		"remote", remote,
		"worker", opts.Worker,
		"pdf_engine", cfg.PDFEngine,
		"llm_provider", cfg.LLMProvider,
		"audit_log", cfg.PostgresDSN != "" && opts.Record,
	)
	return app, nil
}

func (a *App) openExtractionLog(ctx context.Context, cfg config.Config) (ports.ExtractionLog, ports.ExtractionHistory, error) {
	if cfg.PostgresDSN == "" {
		return postgres.NopExtractionLog{}, postgres.NopExtractionLog{}, nil
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, closeDB(db))

	repo := postgres.NewExtractionLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, repo, nil
}

func (a *App) newGenerator(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.TextGenerator, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{ResilienceExecutor: executor})
		return ollama.NewGenerator(client), nil
	case config.LLMProviderGemini:
		generator, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		a.closers = append(a.closers, func() { _ = generator.Close() })
		return generator, nil
	case config.LLMProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func newStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		storage, err := s3storage.New(ctx, s3storage.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return storage, nil
	case config.StorageBackendLocal, "":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	default:
		return nil, errors.New("unknown storage backend " + cfg.StorageBackend)
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
