package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mongocsvexport/internal/etl"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches Extended JSON documents from a REST endpoint and streams the
// response body.

type httpSource struct {
	client *http.Client
}

func init() { etl.RegisterSource(&httpSource{client: &http.Client{Timeout: 5 * time.Minute}}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL returning a JSON array or newline-delimited documents"},
			{Key: "method", Label: "Method", Type: "select", Required: false, Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "json", Required: false, Help: "JSON object of headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Type: "string", Required: false, Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
		},
	}
}

func (s *httpSource) Open(ctx context.Context, cfg etl.SourceConfig) (etl.Cursor, error) {
	method := strings.ToUpper(cfg.String("method"))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body := cfg.String("body"); body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.String("url"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	headers, err := parseHeaders(cfg["headers"])
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return openDocuments(resp.Body, cfg.String("dataPath"))
}

// parseHeaders accepts either a JSON object string or an already decoded map
// (YAML job files).
func parseHeaders(v any) (map[string]string, error) {
	out := map[string]string{}
	switch h := v.(type) {
	case nil:
	case string:
		if strings.TrimSpace(h) == "" {
			return out, nil
		}
		if err := json.Unmarshal([]byte(h), &out); err != nil {
			return nil, fmt.Errorf("parse headers: %w", err)
		}
	case map[string]any:
		for k, val := range h {
			out[k] = fmt.Sprint(val)
		}
	case map[string]string:
		for k, val := range h {
			out[k] = val
		}
	default:
		return nil, fmt.Errorf("headers: unsupported type %T", v)
	}
	return out, nil
}
