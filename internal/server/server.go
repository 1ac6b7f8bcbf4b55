// Package server exposes the resolution engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/reconcile"
	"github.com/sells-group/property-resolver/internal/resolve"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Engine is the resolution boundary. *resolve.Engine satisfies it.
type Engine interface {
	Resolve(ctx context.Context, req resolve.Request) (resolve.Response, error)
	ResolveAreaMetrics(ctx context.Context, fips string) (property.AreaMetrics, error)
	ReconcileField(field string, incoming, current any, defaults map[string]any, snapshot property.Snapshot) reconcile.Decision
}

// Options configures the router.
type Options struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

type handler struct {
	engine Engine
}

// New builds the router.
func New(engine Engine, opts Options) http.Handler {
	h := &handler{engine: engine}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/properties/resolve", h.resolveProperty)
		r.Get("/areas/{fips}", h.areaMetrics)
		r.Post("/fields/reconcile", h.reconcileField)
	})
	return r
}

func (h *handler) resolveProperty(w http.ResponseWriter, r *http.Request) {
	var req resolve.Request
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.engine.Resolve(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) areaMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.ResolveAreaMetrics(r.Context(), chi.URLParam(r, "fips"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type reconcileRequest struct {
	Field       string            `json:"field"`
	Incoming    any               `json:"incoming_value"`
	Current     any               `json:"current_value"`
	Defaults    map[string]any    `json:"defaults"`
	APISnapshot property.Snapshot `json:"api_snapshot"`
}

func (h *handler) reconcileField(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Field == "" {
		writeError(w, r, &property.ValidationError{Reason: "field is required"})
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ReconcileField(req.Field, req.Incoming, req.Current, req.Defaults, req.APISnapshot))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, &property.ValidationError{Reason: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error      string `json:"error"`
	Credential string `json:"credential,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) (int, errorBody) {
	var val *property.ValidationError
	var cfg *property.ConfigError
	switch {
	case errors.As(err, &val):
		return http.StatusBadRequest, errorBody{Error: val.Error()}
	case errors.As(err, &cfg):
		return http.StatusInternalServerError, errorBody{Error: cfg.Error(), Credential: cfg.Credential}
	case errors.Is(err, resolve.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "lookup timed out"}
	case errors.Is(err, context.Canceled):
		// nginx-style client closed request
		return 499, errorBody{Error: "request canceled"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	body.RequestID = RequestIDFrom(r.Context())
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", body.RequestID),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestIDFrom returns the id assigned to the request, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestID keeps a valid incoming id or assigns a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}
