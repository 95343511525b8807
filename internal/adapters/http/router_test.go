package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/usecase"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/loader"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/markup"
	"github.com/kirillkom/neurotask/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/neurotask/internal/observability/metrics"
)

type plannerFake struct {
	text string
	plan *domain.TaskPlan
	err  error
}

func (f *plannerFake) Plan(_ context.Context, text string) (*domain.TaskPlan, error) {
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

type historyFake struct {
	limit   int
	records []domain.ExtractionRecord
}

func (f *historyFake) Recent(_ context.Context, limit int) ([]domain.ExtractionRecord, error) {
	f.limit = limit
	return f.records, nil
}

func newTestExtractor(t *testing.T) *usecase.ExtractTextUseCase {
	t.Helper()
	pdfDecoder, err := pdf.New(pdf.EngineLedongthuc)
	if err != nil {
		t.Fatalf("pdf.New() error = %v", err)
	}
	return usecase.NewExtractTextUseCase(loader.New(1<<20), markup.NewStripper(), pdfDecoder, docx.New())
}

func newTestRouter(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Extractor == nil {
		deps.Extractor = newTestExtractor(t)
	}
	return NewRouter(deps, Options{MaxUploadBytes: 1 << 20, ExtractTimeout: 5 * time.Second}).Handler()
}

func multipartBody(t *testing.T, fields map[string]string, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if fileName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}
	return body, writer.FormDataContentType()
}

func postFile(t *testing.T, handler http.Handler, path, fileName, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, nil, fileName, contentType, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return env.Error
}

func TestExtractHTMLUpload(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := postFile(t, handler, "/v1/extract", "page.html", "text/html; charset=utf-8", []byte("<div>Hello <b>World</b><script>x()</script></div>"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text != "Hello World" || resp.Format != domain.FormatHTML || resp.Chars != 11 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Name != "page.html" || resp.SizeBytes == 0 {
		t.Fatalf("unexpected metadata %+v", resp)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestExtractFallsBackToSuffix(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := postFile(t, handler, "/v1/extract", "notes.md", "application/octet-stream", []byte("# Title"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"format":"markdown"`) {
		t.Fatalf("expected markdown format, got %s", rec.Body.String())
	}
}

func TestExtractUnsupportedReturns415(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := postFile(t, handler, "/v1/extract", "archive.zip", "application/zip", []byte("PK"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeError(t, rec)
	if payload.Kind != string(domain.FailureUnsupportedFormat) || payload.Detail != "application/zip" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestExtractCorruptPDFReturns422(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := postFile(t, handler, "/v1/extract", "report.pdf", "application/pdf", []byte("definitely not a pdf"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeError(t, rec)
	if payload.Kind != string(domain.FailureDecodeError) || payload.Format != domain.FormatPDF {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestExtractInvalidUTF8Returns400(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := postFile(t, handler, "/v1/extract", "bad.txt", "text/plain", []byte{0xff, 0xfe, 0xfd})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeError(t, rec); payload.Kind != string(domain.FailureReadError) {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestExtractRequiresFileField(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	body, ct := multipartBody(t, map[string]string{"note": "x"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeError(t, rec); payload.Kind != "invalid_input" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestExtractRejectsOversizedUpload(t *testing.T) {
	handler := NewRouter(Dependencies{Extractor: newTestExtractor(t)}, Options{MaxUploadBytes: 16}).Handler()

	rec := postFile(t, handler, "/v1/extract", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClassify(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"name":"Spec.DOCX","media_type":""}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Format    domain.FormatClass `json:"format"`
		Strategy  domain.Strategy    `json:"strategy"`
		Supported bool               `json:"supported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Format != domain.FormatWordDocument || resp.Strategy != domain.StrategyWord || !resp.Supported {
		t.Fatalf("unexpected classification %+v", resp)
	}
}

func TestClassifyRequiresInput(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPlanTasksPrefersTypedText(t *testing.T) {
	planner := &plannerFake{plan: &domain.TaskPlan{Tasks: []domain.Task{{ID: 1, Heading: "Add login", Category: domain.TaskCategoryBackend}}}}
	handler := newTestRouter(t, Dependencies{Planner: planner})

	body, ct := multipartBody(t, map[string]string{"text": "typed requirements"}, "req.txt", "text/plain", []byte("file requirements"))
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if planner.text != "typed requirements" {
		t.Fatalf("planner received %q", planner.text)
	}
	var resp planResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Source != "text" || len(resp.Tasks) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPlanTasksFromUploadedFile(t *testing.T) {
	planner := &plannerFake{plan: &domain.TaskPlan{}}
	handler := newTestRouter(t, Dependencies{Planner: planner})

	rec := postFile(t, handler, "/v1/tasks", "req.html", "text/html", []byte("<p>Users can reset passwords</p>"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if planner.text != "Users can reset passwords" {
		t.Fatalf("planner received %q", planner.text)
	}
	if !strings.Contains(rec.Body.String(), `"source":"file"`) || !strings.Contains(rec.Body.String(), `"tasks":[]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestPlanTasksJSONBody(t *testing.T) {
	planner := &plannerFake{plan: &domain.TaskPlan{}}
	handler := newTestRouter(t, Dependencies{Planner: planner})

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"text":"build a settings page"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || planner.text != "build a settings page" {
		t.Fatalf("unexpected result %d %q", rec.Code, planner.text)
	}
}

func TestPlanTasksMapsPlannerErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "plan tasks", errors.New("empty")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUpstream, "parse task list", errors.New("junk")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrTemporary, "generate", errors.New("503")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		handler := newTestRouter(t, Dependencies{Planner: &plannerFake{err: tc.err}})
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"text":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestPlanTasksDisabledWithoutPlanner(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRecentExtractions(t *testing.T) {
	history := &historyFake{records: []domain.ExtractionRecord{{ID: "r1", Name: "a.txt", Outcome: domain.OutcomeOK}}}
	handler := newTestRouter(t, Dependencies{History: history})

	req := httptest.NewRequest(http.MethodGet, "/v1/extractions?limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if history.limit != 5 || !strings.Contains(rec.Body.String(), `"id":"r1"`) {
		t.Fatalf("unexpected history call limit=%d body=%s", history.limit, rec.Body.String())
	}

	bad := httptest.NewRequest(http.MethodGet, "/v1/extractions?limit=-1", nil)
	badRec := httptest.NewRecorder()
	handler.ServeHTTP(badRec, bad)
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", badRec.Code)
	}
}

func TestMetricsEndpointAndRouteLabels(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := newTestRouter(t, Dependencies{Metrics: m})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `path="/healthz"`) {
		t.Fatalf("expected healthz route label in metrics output")
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	handler := newTestRouter(t, Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if payload := decodeError(t, rec); payload.Kind != "not_found" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
