package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
)

// RequestObserver is notified around every served extraction request.
type RequestObserver interface {
	StartRequest()
	FinishRequest(duration time.Duration, outcome domain.ExtractionOutcome)
}

type ServerOptions struct {
	Subject        string
	QueueGroup     string
	RequestTimeout time.Duration
	// Concurrency bounds the requests handled at once. Defaults to NumCPU.
	Concurrency int
	Observer       RequestObserver
	Logger         *slog.Logger
}

// Server answers extraction requests on a NATS subject. Payloads are read
// from object storage by key; replies carry either text or a failure.
type Server struct {
	conn      *nats.Conn
	extractor ports.TextExtractor
	storage   ports.ObjectStorage
	opts      ServerOptions
}

func NewServer(conn *nats.Conn, extractor ports.TextExtractor, storage ports.ObjectStorage, opts ServerOptions) *Server {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.QueueGroup == "" {
		opts.QueueGroup = "workers"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{conn: conn, extractor: extractor, storage: storage, opts: opts}
}

// Serve blocks until ctx is done, then drains the subscription and waits for
// in-flight requests. Deliveries are handed to a bounded pool; when every slot
// is busy the subscription callback blocks and NATS buffers the backlog.
func (s *Server) Serve(ctx context.Context) error {
	pool := newHandlerPool(s.opts.Concurrency)
	defer pool.close()

	sub, err := s.conn.QueueSubscribe(s.opts.Subject, s.opts.QueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		pool.submit(func() { s.respond(ctx, msg) })
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	s.opts.Logger.Info("extract_worker_subscribed",
		"subject", s.opts.Subject,
		"queue_group", s.opts.QueueGroup,
		"concurrency", s.opts.Concurrency,
	)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	pool.close()
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (s *Server) respond(ctx context.Context, msg *nats.Msg) {
	reply := s.handle(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.opts.Logger.Error("nats_respond_failed", "subject", msg.Subject, "error", err)
	}
}

// handlerPool runs request handlers on at most size goroutines. submit blocks
// while the pool is full. After close, submit drops the work.
type handlerPool struct {
	mu     sync.Mutex
	closed bool
	group  errgroup.Group
}

func newHandlerPool(size int) *handlerPool {
	p := &handlerPool{}
	p.group.SetLimit(size)
	return p
}

func (p *handlerPool) submit(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.group.Go(func() error {
		fn()
		return nil
	})
	return true
}

// close waits for running handlers. It is safe to call more than once.
func (p *handlerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.group.Wait()
}

func (s *Server) handle(ctx context.Context, data []byte) []byte {
	started := time.Now()
	if s.opts.Observer != nil {
		s.opts.Observer.StartRequest()
	}

	result, err := s.extract(ctx, data)

	outcome := domain.OutcomeOf(err)
	if s.opts.Observer != nil {
		s.opts.Observer.FinishRequest(time.Since(started), outcome)
	}
	if err != nil {
		s.opts.Logger.Warn("extract_request_failed", "outcome", outcome, "error", err)
	}
	return encodeReply(result, err)
}

func (s *Server) extract(ctx context.Context, data []byte) (*domain.ExtractionResult, error) {
	var req extractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode extraction request", err)
	}
	if req.StorageKey == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode extraction request", fmt.Errorf("storage_key is required"))
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	doc := domain.NewDocument(req.Name, req.MediaType, req.SizeBytes, func(ctx context.Context) (io.ReadCloser, error) {
		return s.storage.Open(ctx, req.StorageKey)
	})
	return s.extractor.Extract(reqCtx, doc)
}
