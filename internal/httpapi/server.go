// Package httpapi is the runtime's own HTTP surface: health, readiness,
// status, metrics and direct inference endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"modelgate/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Group implements it.
type Service interface {
	Models() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Predict(ctx context.Context, model string, payload []byte) (string, error)
	PredictStream(ctx context.Context, model string, payload []byte, emit func(string) error) error
}

type server struct {
	svc      Service
	opts     Options
	logLevel zerolog.Level
}

func NewMux(svc Service, opts Options) http.Handler {
	opts = opts.withDefaults()
	s := &server{svc: svc, opts: opts, logLevel: defaultLevel(opts.DefaultLogLevel)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "X-Log-Level"},
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.Models()})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})
	r.Post("/v2/models/{model}/infer", s.infer)
	r.Post("/v2/models/{model}/infer_stream", s.inferStream)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

func (s *server) infer(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	log := requestLogger(r, s.opts.Logger, s.logLevel).With().Str("model", model).Logger()
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	start := time.Now()
	ctx, cancel := callContext(s.opts.BaseContext, r.Context())
	defer cancel()
	out, err := s.svc.Predict(ctx, model, payload)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.fail(w, log, start, err)
		return
	}
	writeJSON(w, types.InferResponse{Model: model, Output: out})
	log.Info().Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("infer end")
}

// inferStream writes one NDJSON StreamChunk per packed chunk. Headers are
// sent with the first chunk so early failures still get a proper status.
func (s *server) inferStream(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	log := requestLogger(r, s.opts.Logger, s.logLevel).With().Str("model", model).Logger()
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	start := time.Now()
	log.Info().Msg("infer start")

	flusher, _ := w.(http.Flusher)
	out := io.Writer(w)
	if log.GetLevel() <= zerolog.DebugLevel {
		out = io.MultiWriter(w, &lineLogger{log: log})
	}
	enc := json.NewEncoder(out)
	started := false
	begin := func() {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			started = true
		}
	}

	ctx, cancel := callContext(s.opts.BaseContext, r.Context())
	defer cancel()
	err := s.svc.PredictStream(ctx, model, payload, func(chunk string) error {
		begin()
		if err := enc.Encode(types.StreamChunk{Chunk: chunk}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	switch {
	case err != nil && r.Context().Err() != nil:
		log.Debug().Msg("client gone")
	case err != nil && !started:
		s.fail(w, log, start, err)
	case err != nil:
		// headers are gone; report in-band
		_ = enc.Encode(types.ErrorResponse{Error: err.Error(), Code: statusFor(err)})
		log.Error().Err(err).Dur("dur", time.Since(start)).Msg("infer end")
	default:
		begin()
		log.Info().Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("infer end")
	}
}

// decode validates an infer body and re-encodes it as the runtime's JSON
// envelope. On failure it has already written the error response.
func (s *server) decode(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req types.InferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return nil, false
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode request")
		return nil, false
	}
	return payload, true
}

func (s *server) fail(w http.ResponseWriter, log zerolog.Logger, start time.Time, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		countRejected(rejectReason(err))
	}
	writeJSONError(w, status, err.Error())
	log.Error().Err(err).Int("status", status).Dur("dur", time.Since(start)).Msg("infer end")
}
