// Package server serves the web UI and the frontier API.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lucasbaezmiranda/mark-frontend/internal/client"
	"github.com/lucasbaezmiranda/mark-frontend/internal/config"
	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
	"github.com/lucasbaezmiranda/mark-frontend/internal/request"
	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/output"
)

//go:embed static/*
var staticFiles embed.FS

// Analyzer runs an analysis against the analytics service.
type Analyzer interface {
	Analyze(ctx context.Context, req client.Request) (*client.Result, error)
}

// Error kinds reported next to the message in error responses.
const (
	kindInvalidInput    = "InvalidInput"
	kindServiceError    = "ServiceError"
	kindUnavailable     = "ServiceUnavailable"
	kindTimeout         = "Timeout"
	kindPayloadTooLarge = "PayloadTooLarge"
	kindInternal        = "InternalError"
)

const defaultVersionString = "dev"

// Options configures the handler.
type Options struct {
	Logger *zap.Logger
	// Analyzer is nil when no service URL is configured; /api/frontier then
	// answers 503 while the offline endpoints keep working.
	Analyzer       Analyzer
	App            *config.Configuration
	MaxUploadSize  int64
	AllowedOrigins []string
	RequestTimeout time.Duration
	Version        string
	// Now and Seed make time and random defaults reproducible in tests.
	Now  func() time.Time
	Seed int64
}

type handler struct {
	logger        *zap.Logger
	analyzer      Analyzer
	app           *config.Configuration
	maxUploadSize int64
	version       string
	now           func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// frontierRequest is the form submitted by the UI.
type frontierRequest struct {
	request.Form
	ShowCapitalMarketLine *bool `json:"showCapitalMarketLine,omitempty"`
}

type defaultsResponse struct {
	Tickers               string   `json:"tickers"`
	StartDate             string   `json:"startDate"`
	EndDate               string   `json:"endDate"`
	TickerPool            []string `json:"tickerPool"`
	ShowCapitalMarketLine bool     `json:"showCapitalMarketLine"`
	ServiceConfigured     bool     `json:"serviceConfigured"`
}

// NewHandler constructs the HTTP handler that serves the web UI and frontier API.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = defaultVersionString
	}

	app := opts.App
	if app == nil {
		app = &config.Configuration{}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handler{
		logger:        logger,
		analyzer:      opts.Analyzer,
		app:           app,
		maxUploadSize: maxUploadSize,
		version:       version,
		now:           now,
		rng:           rand.New(rand.NewSource(seed)),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(deadline(timeout))

		r.Post("/frontier", h.handleFrontier)
		r.Post("/normalize", h.handleNormalize)
		r.Post("/export", h.handleExport)
		r.Get("/defaults", h.handleDefaults)
		r.Get("/version", h.handleVersion)
	})

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDefaults"

	d := h.app.Defaults
	form := d.Form()

	if r.URL.Query().Has("random") {
		n := d.RandomCount
		if raw := strings.TrimSpace(r.URL.Query().Get("random")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				h.respondError(w, http.StatusBadRequest, kindInvalidInput,
					fmt.Sprintf("invalid random ticker count %q", raw), op)
				return
			}
			n = parsed
		}
		if n < constants.MinTickers {
			h.respondError(w, http.StatusBadRequest, kindInvalidInput,
				fmt.Sprintf("random ticker count must be at least %d", constants.MinTickers), op)
			return
		}

		h.rngMu.Lock()
		tickers := request.RandomTickers(d.TickerPool, n, h.rng)
		h.rngMu.Unlock()

		if len(tickers) < constants.MinTickers {
			h.respondError(w, http.StatusBadRequest, kindInvalidInput,
				"ticker pool is too small for a random portfolio", op)
			return
		}
		form.Tickers = strings.Join(tickers, ", ")
	}

	pool := d.TickerPool
	if pool == nil {
		pool = []string{}
	}
	h.writeJSON(w, http.StatusOK, defaultsResponse{
		Tickers:               form.Tickers,
		StartDate:             form.StartDate,
		EndDate:               form.EndDate,
		TickerPool:            pool,
		ShowCapitalMarketLine: h.app.Chart.ShowCapitalMarketLine,
		ServiceConfigured:     h.analyzer != nil,
	})
}

func (h *handler) handleFrontier(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFrontier"
	start := time.Now()

	if h.analyzer == nil {
		h.respondError(w, http.StatusServiceUnavailable, kindUnavailable,
			"analytics service is not configured", op)
		return
	}

	var payload frontierRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadSize)).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, kindInvalidInput,
			fmt.Sprintf("failed to decode request: %v", err), op)
		return
	}

	req, err := payload.Validate(h.now())
	if err != nil {
		h.respondError(w, http.StatusBadRequest, kindInvalidInput, err.Error(), op)
		return
	}
	req = h.app.ApplyServiceFlags(req)

	result, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		h.respondUpstreamError(w, err, op)
		return
	}

	a, err := normalize.Normalize(result.Raw, h.app.NormalizeOptions())
	if err != nil {
		h.respondError(w, http.StatusBadGateway, normalize.KindName(err), err.Error(), op)
		return
	}

	report := output.NewReport(a, series.Build(a, h.app.SeriesOptions(payload.ShowCapitalMarketLine)))
	report.RequestID = result.RequestID
	report.Duration = time.Since(start).String()

	h.logger.Info("frontier computed",
		zap.String("op", op),
		zap.Strings("tickers", req.Tickers),
		zap.String("requestId", result.RequestID),
		zap.Bool("shared", result.Shared),
		zap.Int("series", len(report.Series)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleNormalize"
	start := time.Now()

	report, ok := h.normalizeBody(w, r, op)
	if !ok {
		return
	}
	report.RequestID = middleware.GetReqID(r.Context())
	report.Duration = time.Since(start).String()

	h.logger.Info("response normalized",
		zap.String("op", op),
		zap.Int("series", len(report.Series)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"

	report, ok := h.normalizeBody(w, r, op)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="frontier.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := output.CsvFormat(w, report.Series); err != nil {
		h.logger.Error("failed to write CSV response",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

// normalizeBody turns a raw analytics response in the request body into a
// report. Errors are written to w and reported with ok=false.
func (h *handler) normalizeBody(w http.ResponseWriter, r *http.Request, op string) (output.Report, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return output.Report{}, false
		}
		h.respondError(w, http.StatusBadRequest, kindInvalidInput,
			fmt.Sprintf("failed to read request body: %v", err), op)
		return output.Report{}, false
	}

	raw, err := normalize.ParseResponse(data)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, normalize.KindName(err), err.Error(), op)
		return output.Report{}, false
	}
	a, err := normalize.Normalize(raw, h.app.NormalizeOptions())
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, normalize.KindName(err), err.Error(), op)
		return output.Report{}, false
	}

	var showCML *bool
	if v := r.URL.Query().Get("cml"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, kindInvalidInput,
				fmt.Sprintf("invalid cml flag %q", v), op)
			return output.Report{}, false
		}
		showCML = &parsed
	}

	return output.NewReport(a, series.Build(a, h.app.SeriesOptions(showCML))), true
}

func (h *handler) respondUpstreamError(w http.ResponseWriter, err error, op string) {
	var svcErr *client.ServiceError
	var normErr *normalize.Error
	switch {
	case errors.As(err, &svcErr):
		h.respondError(w, http.StatusBadGateway, kindServiceError, svcErr.Message, op)
	case errors.As(err, &normErr):
		h.respondError(w, http.StatusBadGateway, normalize.KindName(err), err.Error(), op)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusGatewayTimeout, kindTimeout, "analytics service timed out", op)
	case errors.Is(err, context.Canceled):
		h.respondError(w, http.StatusServiceUnavailable, kindUnavailable, "request cancelled", op)
	default:
		h.respondError(w, http.StatusBadGateway, kindServiceError, err.Error(), op)
	}
}

func (h *handler) respondError(w http.ResponseWriter, status int, kind, msg, op string) {
	if kind == "" {
		kind = kindInternal
	}
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("kind", kind),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}

// deadline bounds each request's context. Unlike middleware.Timeout it never
// writes a response itself; handlers map context.DeadlineExceeded to a 504.
func deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug("HTTP request",
			zap.String("op", "server.request"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}
