// Package httpapi is the thin HTTP adapter over the validation service. All
// orchestration lives behind the Service interface; handlers only decode,
// delegate, and map errors to status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"validd/internal/manager"
	"validd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Compare(ctx context.Context, req types.CompareRequest) (types.CompareResponse, error)
	Complete(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error)
	Ensure(ctx context.Context, id string) (manager.ModelStatus, error)
	Health() types.HealthResponse
	Models() types.ModelsResponse
	Ready() bool
}

// Options configures the mux. The zero value is usable.
type Options struct {
	// MaxBodyBytes caps JSON request bodies; defaults to 1 MiB.
	MaxBodyBytes int64
	// CORSEnabled turns on permissive-by-default CORS handling.
	CORSEnabled bool
	// CORSOrigins overrides the allowed origins; defaults to "*".
	CORSOrigins []string
	Logger      zerolog.Logger
}

// NewMux builds the router.
func NewMux(svc Service, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	log := opts.Logger.With().Str("component", "httpapi").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if opts.CORSEnabled {
		origins := opts.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	compare := compareHandler(svc, opts.MaxBodyBytes, log)
	r.Post("/compare", compare)
	// Older clients call this /validate.
	r.Post("/validate", compare)

	r.Post("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req types.CompletionRequest
		if !decodeJSON(w, r, opts.MaxBodyBytes, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		resp, err := svc.Complete(r.Context(), req)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, opts.MaxBodyBytes, &req) {
			return
		}
		start := time.Now()
		st, err := svc.Ensure(r.Context(), req.Model)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		log.Info().Str("model", st.ModelID).Dur("dur", time.Since(start)).Msg("explicit load complete")
		writeJSON(w, http.StatusOK, types.LoadResponse{
			Status:     "loaded",
			Model:      st.ModelID,
			LoadTimeMs: st.LoadTimeMs,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Models())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no model loaded"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// compareHandler serves /compare and its /validate alias. Error bodies keep
// the full comparison shape with match=false and confidence=0.0 so callers
// can treat errors and "no match" uniformly.
func compareHandler(svc Service, maxBody int64, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CompareRequest
		if !decodeJSON(w, r, maxBody, &req) {
			return
		}
		start := time.Now()
		resp, err := svc.Compare(r.Context(), req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			status := statusForError(err)
			log.Warn().Int("status", status).Str("field_type", req.FieldType).
				Dur("dur", time.Since(start)).Err(err).Msg("compare failed")
			writeJSON(w, status, resp)
			return
		}
		rid := middleware.GetReqID(r.Context())
		log.Info().Str("request_id", rid).Str("field_type", req.FieldType).
			Bool("match", resp.Match).Bool("from_cache", resp.FromCache).
			Dur("dur", time.Since(start)).Msg("compare complete")
		writeJSON(w, http.StatusOK, resp)
	}
}

// decodeJSON enforces the content type and body limit, then decodes into dst.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBody int64, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
