// Package api implements the "api" extractor (spec.md §6): an HTTP GET
// against a JSON array-of-objects endpoint. Adapted from the teacher's
// own net/http client usage (internal/gateway/client.go) — the teacher
// never reaches for a third-party HTTP client, so this plugin doesn't
// either (see DESIGN.md's stdlib justification for net/http).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
)

// Config is the wire shape of the "api" extractor config
// (`{"type":"api","url":<str>}`, spec.md §6).
type Config struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Timeout int    `json:"timeout_seconds,omitempty"`
}

// DefaultTimeout bounds the HTTP round trip when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Extractor pulls a JSON array of flat objects from an HTTP endpoint and
// flattens it into a Dataset whose columns are the union of observed
// keys (see flatten for their order).
type Extractor struct {
	Client *http.Client
}

// New returns an Extractor with a default-timeout *http.Client.
func New() plugin.Extractor {
	return &Extractor{Client: &http.Client{Timeout: DefaultTimeout}}
}

func (e *Extractor) Extract(ctx context.Context, raw json.RawMessage) (plugin.Dataset, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "api", Err: fmt.Errorf("decode config: %w", err), Transient: false}
	}
	if cfg.URL == "" {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "api", Err: fmt.Errorf("url is required"), Transient: false}
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Timeout > 0 {
		client = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "api", Err: err, Transient: false}
	}

	resp, err := client.Do(req)
	if err != nil {
		// Network errors (DNS, connection refused, timeout) are transient:
		// a retry may hit a healthy backend or recovered network path.
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "api", Err: err, Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return plugin.Dataset{}, &apperr.ExtractError{
			Plugin:    "api",
			Err:       fmt.Errorf("upstream returned %d", resp.StatusCode),
			Transient: true,
		}
	}
	if resp.StatusCode >= 400 {
		return plugin.Dataset{}, &apperr.ExtractError{
			Plugin:    "api",
			Err:       fmt.Errorf("upstream returned %d", resp.StatusCode),
			Transient: false,
		}
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "api", Err: fmt.Errorf("decode response: %w", err), Transient: false}
	}

	return flatten(records), nil
}

// flatten converts a slice of JSON objects into a Dataset, inferring the
// column list as the union of keys observed across records, per spec.md
// §4.6's "possibly inferring columns". Keys from earlier records come
// before keys first seen in later ones; within one record, new keys are
// added in Go map iteration order, so their relative order is not defined.
func flatten(records []map[string]any) plugin.Dataset {
	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}

	return plugin.Dataset{Columns: columns, Rows: rows}
}
