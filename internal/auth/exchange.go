package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// ExchangeHeader carries the exchange id on the outbound request.
	ExchangeHeader = "X-Session-ID"

	defaultExchangeTimeout = 10 * time.Second
	maxExchangeBodyBytes   = 1 << 20
)

// ExchangeLatencyObserver records how long upstream exchanges take.
type ExchangeLatencyObserver interface {
	ObserveExchange(outcome string, d time.Duration)
}

// HTTPExchange redeems exchange ids against the provider's session-data endpoint.
type HTTPExchange struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	observer ExchangeLatencyObserver
}

// ExchangeOption configures an HTTPExchange.
type ExchangeOption func(*HTTPExchange)

// WithExchangeTimeout sets the hard deadline for a single exchange call.
func WithExchangeTimeout(d time.Duration) ExchangeOption {
	return func(e *HTTPExchange) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ExchangeOption {
	return func(e *HTTPExchange) {
		if client != nil {
			e.client = client
		}
	}
}

// WithClientCredentials authenticates outbound calls with an OAuth2 client-credentials token.
func WithClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) ExchangeOption {
	return func(e *HTTPExchange) {
		if clientID == "" || tokenURL == "" {
			return
		}
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}
		base := e.client
		e.client = cfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	}
}

// WithLatencyObserver records exchange latencies.
func WithLatencyObserver(o ExchangeLatencyObserver) ExchangeOption {
	return func(e *HTTPExchange) {
		e.observer = o
	}
}

// NewHTTPExchange creates an exchange client for the given endpoint.
func NewHTTPExchange(endpoint string, opts ...ExchangeOption) *HTTPExchange {
	e := &HTTPExchange{
		endpoint: endpoint,
		client:   &http.Client{},
		timeout:  defaultExchangeTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type exchangeResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}

// Exchange redeems exchangeID. Non-2xx answers map to ErrInvalidCredential, deadline
// overruns to ErrUpstreamTimeout and transport failures to ErrUpstreamUnavailable.
func (e *HTTPExchange) Exchange(ctx context.Context, exchangeID string) (identity *Identity, err error) {
	start := time.Now()
	defer func() {
		if e.observer != nil {
			e.observer.ObserveExchange(Kind(err), time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build exchange request: %w", ErrUpstreamUnavailable, err)
	}
	req.Header.Set(ExchangeHeader, exchangeID)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxExchangeBodyBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: exchange returned status %d", ErrInvalidCredential, resp.StatusCode)
	}

	var payload exchangeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxExchangeBodyBytes)).Decode(&payload); err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
		}
		return nil, malformed("decode exchange response: " + err.Error())
	}

	identity = &Identity{
		ID:           payload.ID,
		Email:        strings.TrimSpace(payload.Email),
		Name:         payload.Name,
		SessionToken: payload.SessionToken,
	}
	if payload.Picture != nil {
		identity.Picture = *payload.Picture
	}
	return identity, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
