package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
	"github.com/kirillkom/neurotask/internal/infrastructure/resilience"
)

type requester interface {
	RequestWithContext(ctx context.Context, subject string, data []byte) (*nats.Msg, error)
}

type ClientOptions struct {
	Subject            string
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

// RemoteExtractor stages the document in object storage and asks a worker
// to extract it. The staged object is removed once the reply arrives.
type RemoteExtractor struct {
	conn     requester
	storage  ports.ObjectStorage
	executor *resilience.Executor
	subject  string
	timeout  time.Duration
}

func NewRemoteExtractor(conn *nats.Conn, storage ports.ObjectStorage, opts ClientOptions) *RemoteExtractor {
	return newRemoteExtractor(conn, storage, opts)
}

func newRemoteExtractor(conn requester, storage ports.ObjectStorage, opts ClientOptions) *RemoteExtractor {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &RemoteExtractor{
		conn:     conn,
		storage:  storage,
		executor: opts.ResilienceExecutor,
		subject:  opts.Subject,
		timeout:  opts.RequestTimeout,
	}
}

func (c *RemoteExtractor) Extract(ctx context.Context, doc *domain.Document) (*domain.ExtractionResult, error) {
	if doc == nil {
		return nil, nil
	}

	// Unsupported documents are rejected here so their bytes are never read.
	format := domain.Classify(doc.MediaType(), doc.Name())
	if !format.Supported() {
		return nil, domain.NewUnsupportedFormat(doc.MediaType())
	}

	key := uuid.NewString()
	if err := c.stage(ctx, key, doc, format); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("staged_object_delete_failed", "key", key, "error", err)
		}
	}()

	payload, err := json.Marshal(extractRequest{
		StorageKey: key,
		Name:       doc.Name(),
		MediaType:  doc.MediaType(),
		SizeBytes:  doc.Size(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := resilience.Do(reqCtx, c.executor, "nats.request", func(ctx context.Context) (*nats.Msg, error) {
		msg, err := c.conn.RequestWithContext(ctx, c.subject, payload)
		if err != nil {
			return nil, fmt.Errorf("nats request: %w", err)
		}
		return msg, nil
	}, classifyNATSError)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, wrapTemporaryIfNeeded("nats request", err)
	}
	return decodeReply(msg.Data)
}

func (c *RemoteExtractor) stage(ctx context.Context, key string, doc *domain.Document, format domain.FormatClass) error {
	rc, err := doc.Open(ctx)
	if err != nil {
		return readFailure(ctx, format, err)
	}
	defer rc.Close()

	src := &trackingReader{r: rc}
	if err := c.storage.Save(ctx, key, src); err != nil {
		if src.err != nil {
			return readFailure(ctx, format, src.err)
		}
		return domain.WrapError(domain.ErrTemporary, "stage document", err)
	}
	return nil
}

func readFailure(ctx context.Context, format domain.FormatClass, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && resilience.IsContextError(err) {
		return ctxErr
	}
	return domain.NewReadFailure(format, err)
}

// trackingReader remembers a source read error so it is not mistaken for
// a storage failure.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}
