// Package gateway is the client-facing edge: it turns a backend token stream
// into Server-Sent Events with heartbeats and disconnect detection.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelgate/internal/engine"
)

// Backend opens a streaming call against a model.
type Backend interface {
	Stream(ctx context.Context, model string, payload []byte) (engine.Stream, error)
}

// Defaults for Config.
const (
	DefaultHeartbeat = 10 * time.Second
	DefaultReadWait  = time.Second
)

type Config struct {
	// Heartbeat is the idle time after which a keep-alive comment is sent.
	Heartbeat time.Duration
	// ReadWait bounds each wait for the next token.
	ReadWait time.Duration
	Logger   zerolog.Logger
}

// Bridge serves one SSE response per request.
type Bridge struct {
	backend Backend
	cfg     Config
}

func NewBridge(b Backend, cfg Config) *Bridge {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.ReadWait <= 0 {
		cfg.ReadWait = DefaultReadWait
	}
	return &Bridge{backend: b, cfg: cfg}
}

// payload is the JSON envelope the runtime decodes.
type payload struct {
	Input     string         `json:"input"`
	SessionID string         `json:"session_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// parseRequest validates query parameters. Nothing touches the backend until
// it succeeds.
func parseRequest(r *http.Request) ([]byte, error) {
	q := r.URL.Query()
	p := payload{Input: q.Get("input"), SessionID: q.Get("session_id")}
	if p.Input == "" {
		return nil, errors.New("input is required")
	}
	if raw := q.Get("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Params); err != nil {
			return nil, fmt.Errorf("invalid params JSON: %v", err)
		}
	}
	return json.Marshal(p)
}

// ServeStream handles GET .../{model}/stream.
func (b *Bridge) ServeStream(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	log := b.cfg.Logger.With().Str("model", model).Str("stream_id", uuid.NewString()).Logger()
	start := time.Now()

	body, err := parseRequest(r)
	if err != nil {
		streamsTotal.WithLabelValues(model, "bad_request").Inc()
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s, err := b.backend.Stream(ctx, model, body)
	if err != nil {
		streamsTotal.WithLabelValues(model, "error").Inc()
		log.Warn().Err(err).Msg("open backend stream")
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	defer s.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	log.Debug().Msg("stream open")

	result := b.pump(ctx, r.Context(), w, flusher, s, model, log)
	streamsTotal.WithLabelValues(model, result).Inc()
	streamDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	log.Debug().Str("result", result).Dur("dur", time.Since(start)).Msg("stream closed")
}

// pump forwards tokens until the backend ends the stream or the client goes
// away. It returns the result label for metrics.
func (b *Bridge) pump(ctx, client context.Context, w io.Writer, f http.Flusher, s engine.Stream, model string, log zerolog.Logger) string {
	items := engine.Pump(ctx, s)
	wait := time.NewTimer(b.cfg.ReadWait)
	defer wait.Stop()
	lastWrite := time.Now()
	gone := func() string {
		disconnectsTotal.Inc()
		log.Debug().Msg("client disconnected")
		return "disconnected"
	}

	for {
		wait.Reset(b.cfg.ReadWait)
		select {
		case it, ok := <-items:
			if !ok {
				return gone()
			}
			if errors.Is(it.Err, io.EOF) {
				return "ok"
			}
			if it.Err != nil {
				log.Warn().Err(it.Err).Msg("backend stream failed")
				_ = writeFrame(w, f, errorEvent(it.Err))
				return "error"
			}
			if err := writeFrame(w, f, dataEvent(it.Token)); err != nil {
				return gone()
			}
			tokensTotal.WithLabelValues(model).Inc()
			lastWrite = time.Now()
		case <-wait.C:
			if time.Since(lastWrite) > b.cfg.Heartbeat {
				if err := writeFrame(w, f, ": heartbeat\n\n"); err != nil {
					return gone()
				}
				heartbeatsTotal.Inc()
				lastWrite = time.Now()
			}
		case <-client.Done():
		}
		if client.Err() != nil {
			return gone()
		}
	}
}

// dataEvent frames tok as one SSE event. Embedded newlines become separate
// data lines, which conforming clients join back with "\n".
func dataEvent(tok string) string {
	var sb strings.Builder
	for _, line := range strings.Split(tok, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(strings.TrimSuffix(line, "\r"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func errorEvent(err error) string {
	return "event: error\n" + dataEvent(err.Error())
}

func writeFrame(w io.Writer, f http.Flusher, frame string) error {
	if _, err := io.WriteString(w, frame); err != nil {
		return err
	}
	f.Flush()
	return nil
}
