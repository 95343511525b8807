package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	deletes []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/staging/")
	switch r.Method {
	case http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		b.objects[key] = string(raw)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := b.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = io.WriteString(w, body)
	case http.MethodDelete:
		b.deletes = append(b.deletes, key)
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeBucket) {
	t.Helper()

	bucket := &fakeBucket{objects: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		Bucket:    "staging",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, bucket
}

func TestSaveOpenDelete(t *testing.T) {
	s, bucket := newTestStorage(t)
	ctx := context.Background()

	if err := s.Save(ctx, "doc-1", strings.NewReader("payload")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.Contains(bucket.objects["doc-1"], "payload") {
		t.Fatalf("expected uploaded payload, got %q", bucket.objects["doc-1"])
	}

	bucket.objects["doc-1"] = "payload"
	rc, err := s.Open(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	rc.Close()
	if string(raw) != "payload" {
		t.Fatalf("unexpected body %q", raw)
	}

	if err := s.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(bucket.deletes) != 1 || bucket.deletes[0] != "doc-1" {
		t.Fatalf("unexpected deletes %v", bucket.deletes)
	}
}

func TestOpenMissingObjectIsNotFound(t *testing.T) {
	s, _ := newTestStorage(t)

	if _, err := s.Open(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
