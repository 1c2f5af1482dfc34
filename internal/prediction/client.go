// Package prediction talks to external confidence predictors over HTTP,
// caches their raw responses, and aggregates ensembles of predictors.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout = 15 * time.Second
)

// Contract violation errors. Transport-level failures are never returned
// as errors; a broken success payload is.
var (
	ErrMissingConfidence = errors.New("prediction response missing confidence field")
	ErrConfidenceRange   = errors.New("prediction confidence outside [0, 1]")
)

// FeatureWindow is the request body sent to a predictor: the most recent
// snapshots of one token, oldest first.
type FeatureWindow struct {
	Mint          string              `json:"mint"`
	SnapshotIndex int                 `json:"snapshotIndex"`
	Features      []map[string]float64 `json:"features"`
}

// Result is the outcome of one predictor call. OK is false for any
// transport-level failure (non-200 status, network error); Status and Body
// then carry the raw response for diagnostics.
type Result struct {
	OK              bool
	Confidence      float64
	PredictedPrices []float64
	Status          int
	Body            string
	Raw             json.RawMessage
}

// response is the predictor wire format. Confidence is required for
// confidence predictors; price predictors return predictedPrices instead.
type response struct {
	Confidence      *float64  `json:"confidence"`
	PredictedPrices []float64 `json:"predictedPrices"`
}

// Client calls one predictor endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a predictor client for an endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict POSTs a feature window and parses the confidence response.
//
// Transport failures (network error, non-200) come back as a Result with
// OK=false, never as an error. A 200 whose body is missing the confidence
// field or whose confidence is outside [0, 1] is a contract violation and
// returns an error.
func (c *Client) Predict(ctx context.Context, window *FeatureWindow) (*Result, error) {
	body, err := json.Marshal(window)
	if err != nil {
		return nil, fmt.Errorf("marshal feature window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Result{OK: false, Status: 0, Body: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{OK: false, Status: resp.StatusCode, Body: fmt.Sprintf("read body: %v", err)}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return &Result{OK: false, Status: resp.StatusCode, Body: string(raw)}, nil
	}

	return ParseResponse(raw)
}

// ParseResponse validates a raw 200 response body. Shared with the cache
// read path so cached and fresh responses obey the same contract.
func ParseResponse(raw []byte) (*Result, error) {
	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}

	// Price predictors return a price list instead of a confidence.
	if parsed.Confidence == nil && len(parsed.PredictedPrices) > 0 {
		return &Result{
			OK:              true,
			PredictedPrices: parsed.PredictedPrices,
			Status:          http.StatusOK,
			Raw:             json.RawMessage(raw),
		}, nil
	}

	if parsed.Confidence == nil {
		return nil, ErrMissingConfidence
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return nil, fmt.Errorf("%w: %v", ErrConfidenceRange, *parsed.Confidence)
	}

	return &Result{
		OK:         true,
		Confidence: *parsed.Confidence,
		Status:     http.StatusOK,
		Raw:        json.RawMessage(raw),
	}, nil
}
