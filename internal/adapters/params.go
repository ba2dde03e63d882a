package adapters

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Float reads a numeric request parameter, falling back to def when it is
// absent or not a number.
func Float(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Int reads an integer request parameter. JSON numbers arrive as float64 and
// are truncated.
func Int(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// APIKey picks the credential for a hosted backend: an explicit key wins, then
// the named environment variable, then fallbackEnv.
func APIKey(explicit, envName, fallbackEnv string) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	for _, name := range []string{envName, fallbackEnv} {
		if name == "" {
			continue
		}
		if k := strings.TrimSpace(os.Getenv(name)); k != "" {
			return k, nil
		}
	}
	return "", fmt.Errorf("no api key: set api_key or %s", firstNonEmpty(envName, fallbackEnv))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
