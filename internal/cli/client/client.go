package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	bearerPrefix = "Bearer "

	maxErrorBodySize = 4096
)

// Request is a single GraphQL operation
type Request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Executor sends one GraphQL request. A non-empty token is attached as a
// bearer Authorization header; otherwise the request is unauthenticated.
// Failures are returned as *RemoteError.
type Executor interface {
	Execute(ctx context.Context, req Request, token string) (json.RawMessage, error)
}

// Client represents a GraphQL client for one CRM API endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Executor = (*Client)(nil)

// New creates a new API client
func New(endpoint string, logger zerolog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// Endpoint returns the URL requests are sent to
func (c *Client) Endpoint() string {
	return c.endpoint
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Execute sends the request and returns the response's data payload
func (c *Client) Execute(ctx context.Context, req Request, token string) (json.RawMessage, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, &RemoteError{StatusCode: CodeBadRequest, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &RemoteError{StatusCode: CodeBadRequest, Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", bearerPrefix+token)
	}

	log := c.logger.With().
		Str("operation", req.OperationName).
		Bool("authenticated", token != "").
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Msg("GraphQL request failed")
		return nil, &RemoteError{StatusCode: CodeNetworkError, Message: fmt.Sprintf("failed to send request: %v", err), cause: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("GraphQL request")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{StatusCode: CodeNetworkError, HTTPStatus: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err), cause: err}
	}

	var gqlResp graphQLResponse
	decodeErr := json.Unmarshal(body, &gqlResp)

	// GraphQL errors take precedence over the transport status
	if decodeErr == nil && len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		code := first.Extensions.Code
		if code == "" {
			code = classifyStatus(resp.StatusCode)
		}
		return nil, &RemoteError{StatusCode: code, HTTPStatus: resp.StatusCode, Message: first.Message}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			StatusCode: classifyStatus(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Message:    fmt.Sprintf("request failed (status %d): %s", resp.StatusCode, truncate(body, maxErrorBodySize)),
		}
	}

	if decodeErr != nil {
		return nil, &RemoteError{StatusCode: CodeBadResponse, HTTPStatus: resp.StatusCode, Message: fmt.Sprintf("failed to decode response: %v", decodeErr), cause: decodeErr}
	}

	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil, &RemoteError{StatusCode: CodeBadResponse, HTTPStatus: resp.StatusCode, Message: "response contained no data"}
	}

	return gqlResp.Data, nil
}

// Decode unmarshals a data payload returned by Execute
func Decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &RemoteError{StatusCode: CodeBadResponse, Message: fmt.Sprintf("failed to decode response: %v", err), cause: err}
	}
	return nil
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
