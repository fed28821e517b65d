package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hoppscotch-backup/internal/logger"

	"go.uber.org/zap"
)

// maxErrorBodyBytes caps how much of a failing response body is kept
// for error messages.
const maxErrorBodyBytes = 4 * 1024

// Client is a minimal GraphQL-over-HTTP transport for the Hoppscotch
// backend. Every request carries the configured bearer token and is
// bounded by an explicit timeout.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

// Request is the wire shape of a GraphQL POST body.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName"`
}

// Error is one entry of a GraphQL-level errors array.
type Error struct {
	Message string `json:"message"`
}

// Response is the GraphQL envelope. Data is kept raw so callers can
// decide how (and whether) to decode it.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

// HasData reports whether the envelope carried a non-null data field.
func (r *Response) HasData() bool {
	trimmed := strings.TrimSpace(string(r.Data))
	return trimmed != "" && trimmed != "null"
}

// ErrorMessages joins the GraphQL error messages for display.
func (r *Response) ErrorMessages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewClient creates a client for the given API base URL. The /graphql
// path is appended here so callers pass the bare base URL.
func NewClient(apiBaseURL, bearerToken string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(apiBaseURL, "/") + "/graphql",
		token:      bearerToken,
	}
}

// Do executes a single GraphQL operation. It fails on transport
// errors, non-2xx statuses, and bodies that do not parse as a GraphQL
// envelope. GraphQL-level errors are returned inside the Response for
// the caller to interpret; no retries are attempted.
func (c *Client) Do(ctx context.Context, operationName, query string, variables map[string]interface{}) (*Response, error) {
	body, err := json.Marshal(Request{
		Query:         query,
		Variables:     variables,
		OperationName: operationName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL request %s: %w", operationName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL request %s: %w", operationName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	logger.Log.Debug("Sending GraphQL request",
		zap.String("operation", operationName),
		zap.String("endpoint", c.endpoint),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GraphQL request %s failed: %w", operationName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read GraphQL response for %s: %w", operationName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := raw
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, fmt.Errorf("GraphQL request %s returned %s: %s", operationName, resp.Status, string(snippet))
	}

	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("GraphQL response for %s is not a valid envelope: %w", operationName, err)
	}

	logger.Log.Debug("GraphQL response received",
		zap.String("operation", operationName),
		zap.Int("status", resp.StatusCode),
		zap.Bool("hasData", envelope.HasData()),
		zap.Int("errorCount", len(envelope.Errors)),
	)
	return &envelope, nil
}

// DecodeData unmarshals the envelope's data field into out.
func (r *Response) DecodeData(out interface{}) error {
	if !r.HasData() {
		return fmt.Errorf("GraphQL response has no data field")
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode GraphQL data: %w", err)
	}
	return nil
}
