package types

// Model describes a runtime served by this process.
type Model struct {
	// Runtime name used in request paths.
	// example: support-bot
	Name string `json:"name"`
	// Adapter kind.
	// example: llamaserver
	Adapter string `json:"adapter"`
	// Engine type (chat, query, retrieve).
	// example: chat
	EngineType string `json:"engine_type"`
	// URI currently in service.
	ResolvedURI string `json:"resolved_uri,omitempty"`
	// Lifecycle state.
	// example: ready
	State string `json:"state"`
}
