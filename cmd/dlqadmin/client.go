package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// apiEnvelope mirrors the ingestion API's {success, data, error} response
// shape. Data is decoded lazily via json.RawMessage so each call site can
// unmarshal into its own response type.
type apiEnvelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Error   *apiErrorEnvelope `json:"error,omitempty"`
}

type apiErrorEnvelope struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// apiError is returned when the server responds with a domain-level
// failure envelope (success: false).
type apiError struct {
	Code    string
	Message string
	Details interface{}
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// dlqClient talks to the ingestion API's admin DLQ surface.
type dlqClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newDLQClient(baseURL, apiKey string) *dlqClient {
	return &dlqClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

type dlqEntry struct {
	ID               string `json:"id"`
	SourceEndpoint   string `json:"sourceEndpoint"`
	SourceDeviceID   string `json:"sourceDeviceId"`
	BatchIndex       *int   `json:"batchIndex,omitempty"`
	FailureReason    string `json:"failureReason"`
	RetryCount       int    `json:"retryCount"`
	Status           string `json:"status"`
	FirstFailedAt    string `json:"firstFailedAt"`
	LastFailedAt     string `json:"lastFailedAt"`
	ResolverIdentity string `json:"resolverIdentity,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Payload          string `json:"payload,omitempty"`
}

type dlqStats struct {
	Pending           int  `json:"pending"`
	Retrying          int  `json:"retrying"`
	Resolved          int  `json:"resolved"`
	Discarded         int  `json:"discarded"`
	ThresholdExceeded bool `json:"thresholdExceeded"`
}

type dlqAlert struct {
	ID           string `json:"id"`
	PendingCount int    `json:"pendingCount"`
	Threshold    int    `json:"threshold"`
	RaisedAt     string `json:"raisedAt"`
}

type dlqRetryResult struct {
	Success    bool   `json:"success"`
	EventID    string `json:"eventId,omitempty"`
	SequenceID int    `json:"sequenceId,omitempty"`
	ChainHash  string `json:"chainHash,omitempty"`
	Error      string `json:"error,omitempty"`
}

type listFilter struct {
	Status         string
	SourceDeviceID string
	SourceEndpoint string
	Limit          int
	Offset         int
}

func (c *dlqClient) List(ctx context.Context, filter listFilter) ([]dlqEntry, error) {
	q := url.Values{}

	if filter.Status != "" {
		q.Set("status", filter.Status)
	}

	if filter.SourceDeviceID != "" {
		q.Set("sourceDeviceId", filter.SourceDeviceID)
	}

	if filter.SourceEndpoint != "" {
		q.Set("sourceEndpoint", filter.SourceEndpoint)
	}

	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var out []dlqEntry

	err := c.do(ctx, http.MethodGet, "/admin/dlq?"+q.Encode(), nil, &out)

	return out, err
}

func (c *dlqClient) Get(ctx context.Context, id string) (*dlqEntry, error) {
	var out dlqEntry

	if err := c.do(ctx, http.MethodGet, "/admin/dlq/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *dlqClient) Stats(ctx context.Context) (*dlqStats, error) {
	var out dlqStats

	if err := c.do(ctx, http.MethodGet, "/admin/dlq/stats", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *dlqClient) Alerts(ctx context.Context, limit int) ([]dlqAlert, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []dlqAlert

	err := c.do(ctx, http.MethodGet, "/admin/dlq/alerts?"+q.Encode(), nil, &out)

	return out, err
}

func (c *dlqClient) Retry(ctx context.Context, id string) (*dlqRetryResult, error) {
	var out dlqRetryResult

	if err := c.do(ctx, http.MethodPost, "/admin/dlq/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *dlqClient) Discard(ctx context.Context, id, notes string) error {
	body, err := json.Marshal(map[string]string{"notes": notes})
	if err != nil {
		return err
	}

	var out map[string]bool

	return c.do(ctx, http.MethodPost, "/admin/dlq/"+url.PathEscape(id)+"/discard", body, &out)
}

// do issues an HTTP request against the ingestion API and decodes the
// {success, data|error} envelope into out.
func (c *dlqClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}

	if !env.Success {
		if env.Error != nil {
			return &apiError{Code: env.Error.Code, Message: env.Error.Message, Details: env.Error.Details}
		}

		return fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	return json.Unmarshal(env.Data, out)
}
