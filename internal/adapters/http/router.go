package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
	"github.com/kirillkom/neurotask/internal/observability/metrics"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartMemoryBytes  = 8 << 20
	multipartOverhead     = 1 << 20
	defaultHistoryLimit   = 50
	backpressureWait      = 250 * time.Millisecond
)

type Dependencies struct {
	Extractor ports.TextExtractor
	Planner   ports.TaskPlanner
	History   ports.ExtractionHistory
	Metrics   *metrics.HTTPServerMetrics
}

type Options struct {
	MaxUploadBytes int64
	ExtractTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	extractor ports.TextExtractor
	planner   ports.TaskPlanner
	history   ports.ExtractionHistory
	metrics   *metrics.HTTPServerMetrics
	opts      Options
}

func NewRouter(deps Dependencies, opts Options) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Router{
		extractor: deps.Extractor,
		planner:   deps.Planner,
		history:   deps.History,
		metrics:   deps.Metrics,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	r.Get("/v1/formats", rt.formats)

	var onLimited func()
	if rt.metrics != nil {
		onLimited = rt.metrics.RecordRateLimited
	}
	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onLimited))
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.opts.MaxInFlight, backpressureWait)
		})

		r.Post("/v1/extract", rt.extract)
		r.Post("/v1/classify", rt.classify)
		r.Post("/v1/tasks", rt.planTasks)
		r.Get("/v1/extractions", rt.recentExtractions)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", "", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method_not_allowed", "", "method not allowed"))
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) formats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"media_types": domain.SupportedMediaTypes(),
		"suffixes":    domain.SupportedSuffixes(),
	})
}

type extractResponse struct {
	Name      string             `json:"name"`
	MediaType string             `json:"media_type"`
	SizeBytes int64              `json:"size_bytes"`
	Format    domain.FormatClass `json:"format"`
	Chars     int                `json:"chars"`
	Text      string             `json:"text"`
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		writeError(w, uploadError(err))
		return
	}

	header, err := formFile(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}

	doc := documentFromUpload(header)
	result, err := rt.runExtraction(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Name:      doc.Name(),
		MediaType: doc.MediaType(),
		SizeBytes: doc.Size(),
		Format:    result.Format,
		Chars:     result.Chars(),
		Text:      result.Text,
	})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		MediaType string `json:"media_type"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", "", "invalid json"))
		return
	}
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.MediaType) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", "", "name or media_type is required"))
		return
	}

	format := domain.Classify(req.MediaType, req.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"format":    format,
		"strategy":  format.Strategy(),
		"supported": format.Supported(),
	})
}

type planResponse struct {
	Source string        `json:"source"`
	Chars  int           `json:"chars"`
	Tasks  []domain.Task `json:"tasks"`
}

// planTasks accepts typed text or an uploaded file. Typed text wins when both
// are present.
func (rt *Router) planTasks(w http.ResponseWriter, r *http.Request) {
	if rt.planner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("temporary", "", "task planning is disabled"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes+multipartOverhead)
	text, source, err := rt.planInput(r)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := rt.planner.Plan(r.Context(), text)
	if rt.metrics != nil {
		rt.metrics.RecordTaskPlan(err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	tasks := plan.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, planResponse{
		Source: source,
		Chars:  len([]rune(text)),
		Tasks:  tasks,
	})
}

func (rt *Router) planInput(r *http.Request) (string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", domain.WrapError(domain.ErrInvalidInput, "decode task request", err)
		}
		return req.Text, "text", nil
	}

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return "", "", uploadError(err)
	}
	if text := r.FormValue("text"); strings.TrimSpace(text) != "" {
		return text, "text", nil
	}

	header, err := formFile(r, "file")
	if err != nil {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "plan tasks", errors.New("enter text or upload a file"))
	}
	result, err := rt.runExtraction(r.Context(), documentFromUpload(header))
	if err != nil {
		return "", "", err
	}
	return result.Text, "file", nil
}

func (rt *Router) recentExtractions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", "", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records := []domain.ExtractionRecord{}
	if rt.history != nil {
		recent, err := rt.history.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if recent != nil {
			records = recent
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractions": records})
}

func (rt *Router) runExtraction(ctx context.Context, doc *domain.Document) (*domain.ExtractionResult, error) {
	if rt.opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.opts.ExtractTimeout)
		defer cancel()
	}
	return rt.extractor.Extract(ctx, doc)
}

func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field '"+field+"' is required"))
	}
	return r.MultipartForm.File[field][0], nil
}

func documentFromUpload(header *multipart.FileHeader) *domain.Document {
	return domain.NewDocument(
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		func(context.Context) (io.ReadCloser, error) {
			return header.Open()
		},
	)
}

func uploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, "parse upload", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
