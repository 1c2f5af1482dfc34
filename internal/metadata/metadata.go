// Package metadata fetches static token metadata from an external
// provider with a bounded internal retry policy. Callers never retry.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"solana-strategy-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrNotFound is returned for a mint the provider does not know.
var ErrNotFound = errors.New("token metadata not found")

// Provider fetches token metadata over HTTP.
type Provider struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ProviderOption configures Provider.
type ProviderOption func(*Provider)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ProviderOption {
	return func(p *Provider) {
		p.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// NewProvider creates a metadata provider for an endpoint.
func NewProvider(endpoint string, opts ...ProviderOption) *Provider {
	p := &Provider{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// response is the provider wire format.
type response struct {
	Mint                   string `json:"mint"`
	Symbol                 string `json:"symbol"`
	Name                   string `json:"name"`
	Creator                string `json:"creator"`
	BondingCurve           string `json:"bondingCurve"`
	AssociatedBondingCurve string `json:"associatedBondingCurve"`
}

// Fetch resolves one mint's metadata, retrying transient failures with
// exponential backoff up to the configured attempt bound. A 404 is
// ErrNotFound and never retried.
func (p *Provider) Fetch(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	endpoint := p.endpoint + "/tokens/" + url.PathEscape(mint)

	delay := p.retryDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.backoffMult)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
		case resp.StatusCode != http.StatusOK:
			lastErr = fmt.Errorf("provider status %d", resp.StatusCode)
			continue
		}

		var parsed response
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			continue
		}
		return &domain.TokenInfo{
			Mint:                   mint,
			Symbol:                 parsed.Symbol,
			Name:                   parsed.Name,
			Creator:                parsed.Creator,
			BondingCurve:           parsed.BondingCurve,
			AssociatedBondingCurve: parsed.AssociatedBondingCurve,
		}, nil
	}
	return nil, fmt.Errorf("fetch metadata for %s: %w", mint, lastErr)
}
