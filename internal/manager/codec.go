package manager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Sentinel is the terminal chunk emitted when a stream ends early because its
// deadline expired or its caller went away.
const Sentinel = "[stream-ended]"

// Stream output formats.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// ParseStreamFormat normalizes a configured stream format.
func ParseStreamFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown stream format %q (want text or jsonl)", s)
	}
}

// Input is a decoded request.
type Input struct {
	Text      string
	SessionID string
	Params    map[string]any
}

// DecodeInput accepts either raw text or a JSON object
// {"input": "...", "session_id": "...", "params": {...}}. A JSON payload
// without a string "input" is treated as raw text.
func DecodeInput(payload []byte) (Input, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Input{}, &BadInputError{Reason: "no input provided"}
	}
	if trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if text, ok := obj["input"].(string); ok {
				in := Input{Text: text, Params: map[string]any{}}
				if sid, ok := obj["session_id"].(string); ok {
					in.SessionID = sid
				}
				if p, ok := obj["params"].(map[string]any); ok {
					in.Params = p
				}
				return in, nil
			}
		}
	}
	return Input{Text: string(payload), Params: map[string]any{}}, nil
}

// PackChunk renders one streamed token in the configured format.
func PackChunk(format, tok string) string {
	if format != FormatJSONL {
		return tok
	}
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}{Type: "token", Data: tok})
	return string(b)
}
