package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPExchangeSendsHeaderAndDecodesIdentity(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(ExchangeHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","email":"a@x.com","name":"Ann","picture":"https://img/p.png","session_token":"tok1"}`))
	}))
	defer srv.Close()

	identity, err := NewHTTPExchange(srv.URL).Exchange(context.Background(), "valid123")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}
	if gotHeader != "valid123" {
		t.Fatalf("expected exchange id header, got %q", gotHeader)
	}
	if identity.Email != "a@x.com" || identity.Name != "Ann" || identity.SessionToken != "tok1" || identity.ID != "u-1" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.Picture != "https://img/p.png" {
		t.Fatalf("expected picture, got %q", identity.Picture)
	}
}

func TestHTTPExchangeNullPicture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u-1","email":"a@x.com","name":"Ann","picture":null,"session_token":"tok1"}`))
	}))
	defer srv.Close()

	identity, err := NewHTTPExchange(srv.URL).Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}
	if identity.Picture != "" {
		t.Fatalf("expected empty picture, got %q", identity.Picture)
	}
}

func TestHTTPExchangeNon2xxIsInvalidCredential(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTPExchange(srv.URL).Exchange(context.Background(), "code")
		srv.Close()
		if !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("status %d: expected ErrInvalidCredential, got %v", status, err)
		}
	}
}

func TestHTTPExchangeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPExchange(srv.URL, WithExchangeTimeout(50*time.Millisecond)).Exchange(context.Background(), "code")
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestHTTPExchangeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPExchange(url).Exchange(context.Background(), "code")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, ErrMalformedUpstreamResponse) {
		t.Fatalf("did not expect malformed response error, got %v", err)
	}
}

func TestHTTPExchangeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPExchange(srv.URL).Exchange(context.Background(), "code")
	if !errors.Is(err, ErrMalformedUpstreamResponse) || !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected malformed upstream error, got %v", err)
	}
}

func TestHTTPExchangeClientCredentials(t *testing.T) {
	var tokenRequests atomic.Int32
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"svc-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/session-data", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"email":"a@x.com","name":"Ann","session_token":"tok1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	exchange := NewHTTPExchange(srv.URL+"/session-data",
		WithClientCredentials(context.Background(), "client", "secret", srv.URL+"/token"),
	)
	if _, err := exchange.Exchange(context.Background(), "code"); err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}
	if gotAuth != "Bearer svc-token" {
		t.Fatalf("expected bearer service token, got %q", gotAuth)
	}
	if tokenRequests.Load() != 1 {
		t.Fatalf("expected one token request, got %d", tokenRequests.Load())
	}
}

type latencyRecorder struct {
	outcome string
}

func (l *latencyRecorder) ObserveExchange(outcome string, _ time.Duration) {
	l.outcome = outcome
}

func TestHTTPExchangeObservesLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	recorder := &latencyRecorder{}
	_, _ = NewHTTPExchange(srv.URL, WithLatencyObserver(recorder)).Exchange(context.Background(), "code")
	if recorder.outcome != "invalid_credential" {
		t.Fatalf("expected invalid_credential outcome, got %q", recorder.outcome)
	}
}
