package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPCatalog queries a model-registry REST endpoint:
//
//	GET {base}/api/2.0/mlflow/registered-models/alias?name=...&alias=...
//	-> {"model_version": {"version": "3"}}
type HTTPCatalog struct {
	base   string
	token  string
	client *http.Client
}

func NewHTTPCatalog(base, token string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPCatalog{base: strings.TrimRight(base, "/"), token: token, client: client}
}

type aliasResponse struct {
	ModelVersion struct {
		Version string `json:"version"`
	} `json:"model_version"`
}

func (c *HTTPCatalog) Version(ctx context.Context, name, alias string) (string, error) {
	q := url.Values{"name": {name}, "alias": {alias}}
	u := c.base + "/api/2.0/mlflow/registered-models/alias?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("catalog status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var ar aliasResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("decode catalog response: %w", err)
	}
	return ar.ModelVersion.Version, nil
}
