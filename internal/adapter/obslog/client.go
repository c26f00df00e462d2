package obslog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/infra/httpclient"
)

// TraceLogs is the row-oriented view of the log records for one trace.
type TraceLogs struct {
	TraceID     string           `json:"trace_id"`
	Logs        []map[string]any `json:"logs"`
	RecordCount int              `json:"record_count"`
}

// Client fetches exported log records from the observability backend's
// query API by trace ID.
type Client struct {
	BaseURL   string
	ReadToken string
	HTTP      *http.Client
}

func NewClient(baseURL, readToken string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ReadToken: readToken,
		HTTP:      httpclient.NewPooledClient(30 * time.Second),
	}
}

// FetchByTraceID queries the backend for all records with the given trace
// ID, oldest first. The backend returns columnar data; the result is
// transposed to rows.
func (c *Client) FetchByTraceID(ctx context.Context, traceID string) (*TraceLogs, error) {
	if c.ReadToken == "" {
		return nil, &domain.ConfigurationError{Setting: "LOGS_READ_TOKEN"}
	}

	query := fmt.Sprintf(`
		SELECT
			start_timestamp,
			message,
			level,
			span_name,
			span_id,
			parent_span_id,
			attributes,
			service_name,
			trace_id
		FROM records
		WHERE trace_id = '%s'
		ORDER BY start_timestamp ASC
		LIMIT 1000
	`, traceID)

	reqURL := fmt.Sprintf("%s/v1/query?%s", c.BaseURL, url.Values{"sql": {query}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logs request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.ReadToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "obslog", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Provider: "obslog",
			Err:      fmt.Errorf("query endpoint returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	var payload struct {
		Columns []struct {
			Name   string `json:"name"`
			Values []any  `json:"values"`
		} `json:"columns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &domain.ProviderError{Provider: "obslog", Err: fmt.Errorf("failed to decode query response: %w", err)}
	}

	var rows []map[string]any
	if len(payload.Columns) > 0 {
		numRows := len(payload.Columns[0].Values)
		for i := 0; i < numRows; i++ {
			row := make(map[string]any, len(payload.Columns))
			for _, col := range payload.Columns {
				if i < len(col.Values) {
					row[col.Name] = col.Values[i]
				} else {
					row[col.Name] = nil
				}
			}
			rows = append(rows, row)
		}
	}

	return &TraceLogs{
		TraceID:     traceID,
		Logs:        rows,
		RecordCount: len(rows),
	}, nil
}
