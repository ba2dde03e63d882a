package types

// InferRequest is the JSON body of POST /v2/models/{model}/infer and
// /v2/models/{model}/infer_stream.
type InferRequest struct {
	// Required input text.
	// example: What is our refund policy?
	Input string `json:"input"`
	// Optional session identifier; chat engines use it to load history.
	// example: 6f1c2b1e
	SessionID string `json:"session_id,omitempty"`
	// Optional engine parameters passed through to the adapter.
	Params map[string]any `json:"params,omitempty"`
}

// InferResponse is returned by POST /v2/models/{model}/infer.
type InferResponse struct {
	// Runtime that served the call.
	// example: support-bot
	Model string `json:"model"`
	// Engine output.
	Output string `json:"output"`
}

// StreamChunk is one NDJSON line of /v2/models/{model}/infer_stream.
type StreamChunk struct {
	Chunk string `json:"chunk"`
}

// ModelsResponse wraps the list of runtimes returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code"`
}

// RuntimeStatus summarizes one runtime for /status.
type RuntimeStatus struct {
	// Runtime name.
	// example: support-bot
	Name string `json:"name"`
	// Lifecycle state (uninitialized, loading, ready, draining, finalized, failed).
	// example: ready
	State string `json:"state"`
	// Adapter kind.
	// example: openai
	Adapter string `json:"adapter"`
	// Configured model reference.
	// example: ref://main.default.support_bot@champion
	ModelRef string `json:"model_ref"`
	// URI currently in service.
	// example: models:/main.default.support_bot/3
	ResolvedURI string `json:"resolved_uri,omitempty"`
	// Engine type (chat, query, retrieve).
	EngineType string `json:"engine_type"`
	// Streams currently holding an admission slot.
	InFlight int `json:"inflight"`
	// Maximum concurrent streams.
	// example: 64
	MaxConcurrent int  `json:"max_concurrent"`
	Draining      bool `json:"draining"`
	// Successful hot reloads.
	Reloads int `json:"reloads"`
	// Failed hot reload attempts.
	ReloadFailures  int    `json:"reload_failures"`
	LastReloadError string `json:"last_reload_error,omitempty"`
	Error           string `json:"error,omitempty"`
	// Seconds since the runtime became ready.
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Runtimes []RuntimeStatus `json:"runtimes"`
	// True once shutdown has begun.
	Draining bool `json:"draining"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix"`
}
