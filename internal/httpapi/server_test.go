package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"modelgate/internal/manager"
	"modelgate/pkg/types"
)

type mockService struct {
	models    []types.Model
	status    types.StatusResponse
	ready     bool
	chunks    []string
	err       error
	lateErr   error
	gotModel  string
	gotInput  types.InferRequest
	predicted bool
}

func (m *mockService) Models() []types.Model        { return append([]types.Model(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) record(model string, payload []byte) {
	m.predicted = true
	m.gotModel = model
	_ = json.Unmarshal(payload, &m.gotInput)
}

func (m *mockService) Predict(ctx context.Context, model string, payload []byte) (string, error) {
	m.record(model, payload)
	if m.err != nil {
		return "", m.err
	}
	return "out:" + m.gotInput.Input, nil
}

func (m *mockService) PredictStream(ctx context.Context, model string, payload []byte, emit func(string) error) error {
	m.record(model, payload)
	if m.err != nil {
		return m.err
	}
	for _, c := range m.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return m.lateErr
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{Name: "m1"}, {Name: "m2"}}}
	w := httptest.NewRecorder()
	NewMux(svc, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 || body.Models[1].Name != "m2" {
		t.Fatalf("models=%+v", body.Models)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Draining: true, Runtimes: []types.RuntimeStatus{{Name: "bot", State: "draining"}}}}
	w := httptest.NewRecorder()
	NewMux(svc, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Draining || len(body.Runtimes) != 1 || body.Runtimes[0].State != "draining" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	for _, tc := range []struct {
		ready bool
		code  int
	}{{true, http.StatusOK}, {false, http.StatusServiceUnavailable}} {
		w := httptest.NewRecorder()
		NewMux(&mockService{ready: tc.ready}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if w.Code != tc.code {
			t.Fatalf("ready=%v status=%d", tc.ready, w.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security header")
	}
}

func TestInfer(t *testing.T) {
	svc := &mockService{}
	w := postJSON(NewMux(svc, Options{}), "/v2/models/bot/infer", `{"input":"hi","session_id":"s1","params":{"top_k":3}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.InferResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Model != "bot" || resp.Output != "out:hi" {
		t.Fatalf("resp=%+v", resp)
	}
	if svc.gotModel != "bot" || svc.gotInput.SessionID != "s1" || svc.gotInput.Params["top_k"] != float64(3) {
		t.Fatalf("service saw %q %+v", svc.gotModel, svc.gotInput)
	}
}

func TestInfer_Validation(t *testing.T) {
	svc := &mockService{}
	mux := NewMux(svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v2/models/bot/infer", strings.NewReader(`{"input":"x"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status=%d", w.Code)
	}
	if w := postJSON(mux, "/v2/models/bot/infer", `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", w.Code)
	}
	if w := postJSON(mux, "/v2/models/bot/infer", `{"input":"  "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty input: status=%d", w.Code)
	}
	if svc.predicted {
		t.Fatalf("service called for invalid requests")
	}
}

func TestInfer_BodyLimit(t *testing.T) {
	w := postJSON(NewMux(&mockService{}, Options{MaxBodyBytes: 16}), "/v2/models/bot/infer", `{"input":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInfer_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{manager.ErrModelNotFound("x"), http.StatusNotFound},
		{manager.ErrDraining, http.StatusServiceUnavailable},
		{&manager.TimeoutError{Model: "bot"}, http.StatusGatewayTimeout},
		{&manager.BadInputError{Reason: "empty"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := postJSON(NewMux(&mockService{err: tc.err}, Options{}), "/v2/models/bot/infer", `{"input":"x"}`)
		if w.Code != tc.code {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.code)
		}
		var body types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != tc.code || body.Error == "" {
			t.Fatalf("%v: body=%s", tc.err, w.Body.String())
		}
	}
}

func readChunks(t *testing.T, body *bytes.Buffer) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		var c types.StreamChunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, c.Chunk)
	}
	return out
}

func TestInferStream_NDJSON(t *testing.T) {
	svc := &mockService{chunks: []string{"A", "B", manager.Sentinel}}
	w := postJSON(NewMux(svc, Options{}), "/v2/models/bot/infer_stream", `{"input":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	got := readChunks(t, w.Body)
	if strings.Join(got, ",") != "A,B,"+manager.Sentinel {
		t.Fatalf("chunks=%q", got)
	}
}

func TestInferStream_ErrorBeforeFirstChunk(t *testing.T) {
	w := postJSON(NewMux(&mockService{err: manager.ErrDraining}, Options{}), "/v2/models/bot/infer_stream", `{"input":"x"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferStream_ErrorAfterFirstChunk(t *testing.T) {
	svc := &mockService{chunks: []string{"A"}, lateErr: errors.New("engine crashed")}
	w := postJSON(NewMux(svc, Options{}), "/v2/models/bot/infer_stream", `{"input":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "engine crashed") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestCORS_OptIn(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{CORSOrigins: []string{"https://app.example"}}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin=%q", got)
	}

	w = httptest.NewRecorder()
	NewMux(&mockService{}, Options{}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("cors without origins: allow-origin=%q", got)
	}
}
