package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chessmate/internal/auth"
	"chessmate/internal/config"
	"chessmate/internal/status"
)

type exchangeFunc func(ctx context.Context, exchangeID string) (*auth.Identity, error)

func (f exchangeFunc) Exchange(ctx context.Context, exchangeID string) (*auth.Identity, error) {
	return f(ctx, exchangeID)
}

type pingerStub struct {
	err error
}

func (p pingerStub) Ping(context.Context) error { return p.err }

func annExchange() exchangeFunc {
	return func(_ context.Context, exchangeID string) (*auth.Identity, error) {
		switch exchangeID {
		case "valid123":
			return &auth.Identity{ID: "u-1", Email: "a@x.com", Name: "Ann", SessionToken: "tok1"}, nil
		case "slow":
			return nil, auth.ErrUpstreamTimeout
		default:
			return nil, auth.ErrInvalidCredential
		}
	}
}

type testServer struct {
	handler http.Handler
	repo    *auth.InMemoryRepository
}

func newTestServer(t *testing.T, env string, store Pinger) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := auth.NewInMemoryRepository()
	if store == nil {
		store = repo
	}
	cfg := config.Config{
		Environment:        env,
		DataStore:          config.StoreMemory,
		AllowedOrigins:     []string{"http://localhost:3000"},
		LoginRatePerMinute: 100,
	}
	router := NewRouter(cfg, Dependencies{
		Auth:   auth.NewService(repo, repo, annExchange(), auth.WithLogger(logger)),
		Status: status.NewService(status.NewInMemoryRepository()),
		Store:  store,
		Logger: logger,
	})
	t.Cleanup(router.Close)
	return testServer{handler: router, repo: repo}
}

func (s testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func login(t *testing.T, srv testServer) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set(auth.ExchangeHeader, "valid123")
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("expected session cookie")
	return nil
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set(auth.ExchangeHeader, "valid123")
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	session := decodeBody[map[string]any](t, rec)
	if session["session_token"] != "tok1" || session["email"] != "a@x.com" || session["id"] != "u-1" {
		t.Fatalf("unexpected session response: %v", session)
	}
	if session["picture"] != nil {
		t.Fatalf("expected null picture, got %v", session["picture"])
	}

	cookie := rec.Result().Cookies()[0]
	if cookie.Name != sessionCookieName || cookie.Value != "tok1" || !cookie.HttpOnly {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	if cookie.SameSite != http.SameSiteLaxMode || cookie.Secure {
		t.Fatalf("expected lax, non-secure cookie in development: %+v", cookie)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("expected cookie max-age of session TTL, got %d", cookie.MaxAge)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected verify 200, got %d", rec.Code)
	}
	profile := decodeBody[profileResponse](t, rec)
	if profile.Email != "a@x.com" || profile.Name != "Ann" || profile.TotalGames != 0 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", rec.Code)
	}
	if msg := decodeBody[map[string]string](t, rec)["message"]; msg != "Logged out successfully" {
		t.Fatalf("unexpected logout message %q", msg)
	}
	cleared := rec.Result().Cookies()[0]
	if cleared.Name != sessionCookieName || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cleared)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.AddCookie(cookie)
	rec = srv.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestCreateSessionSecureCookieOutsideDevelopment(t *testing.T) {
	srv := newTestServer(t, "production", nil)
	cookie := login(t, srv)
	if !cookie.Secure || cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("expected secure SameSite=None cookie, got %+v", cookie)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	cases := []struct {
		header string
		status int
		code   string
	}{
		{"", http.StatusUnauthorized, "missing_credential"},
		{"bogus", http.StatusUnauthorized, "invalid_credential"},
		{"slow", http.StatusGatewayTimeout, "upstream_timeout"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
		if tc.header != "" {
			req.Header.Set(auth.ExchangeHeader, tc.header)
		}
		rec := srv.do(req)
		if rec.Code != tc.status {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.status, rec.Code)
		}
		if code := decodeBody[errorResponse](t, rec).Code; code != tc.code {
			t.Fatalf("header %q: expected code %q, got %q", tc.header, tc.code, code)
		}
	}
}

func TestVerifyWithoutTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected bearer challenge")
	}
	if code := decodeBody[errorResponse](t, rec).Code; code != "missing_credential" {
		t.Fatalf("expected missing_credential, got %q", code)
	}
}

func TestUpdateProfileFromQueryAndBody(t *testing.T) {
	srv := newTestServer(t, "development", nil)
	cookie := login(t, srv)

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile?age=31", nil)
	req.AddCookie(cookie)
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody[profileResponse](t, rec)
	if profile.Age == nil || *profile.Age != 31 || profile.ProfileComplete {
		t.Fatalf("unexpected profile after age update: %+v", profile)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/auth/profile", strings.NewReader(`{"country":"Chile"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	profile = decodeBody[profileResponse](t, rec)
	if profile.Country == nil || *profile.Country != "Chile" || profile.Age == nil || *profile.Age != 31 {
		t.Fatalf("expected merged profile, got %+v", profile)
	}
	if !profile.ProfileComplete {
		t.Fatal("expected profile to be complete")
	}
}

func TestUpdateProfileRejectsBadAge(t *testing.T) {
	srv := newTestServer(t, "development", nil)
	cookie := login(t, srv)

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile?age=old", nil)
	req.AddCookie(cookie)
	rec := srv.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeBody[errorResponse](t, rec).Code; code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", code)
	}
}

func TestUpdateProfileChecksCredentialBeforeInput(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	rec := srv.do(httptest.NewRequest(http.MethodPut, "/api/auth/profile?age=abc", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
	if code := decodeBody[errorResponse](t, rec).Code; code != "missing_credential" {
		t.Fatalf("expected missing_credential, got %q", code)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile?age=abc", nil)
	req.Header.Set("Authorization", "Bearer unknown")
	rec = srv.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown token, got %d", rec.Code)
	}
	if code := decodeBody[errorResponse](t, rec).Code; code != "invalid_credential" {
		t.Fatalf("expected invalid_credential, got %q", code)
	}
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile?age=31", nil)
	req.Header.Set("Authorization", "Bearer unknown")
	rec := srv.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := decodeBody[errorResponse](t, rec).Code; code != "invalid_credential" {
		t.Fatalf("expected invalid_credential, got %q", code)
	}
}

func TestLogoutWithoutTokenSucceeds(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	for i := 0; i < 2; i++ {
		rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}

func TestListUsers(t *testing.T) {
	srv := newTestServer(t, "development", nil)
	login(t, srv)
	srv.repo.RecordGame("a@x.com", auth.Stats{TotalGames: 3, Wins: 2, Losses: 1})

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	list := decodeBody[userListResponse](t, rec)
	if list.TotalUsers != 1 || len(list.Users) != 1 {
		t.Fatalf("expected one user, got %+v", list)
	}
	if list.Users[0].Wins != 2 || list.Users[0].TotalGames != 3 || list.Users[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected user summary: %+v", list.Users[0])
	}
}

func TestExportUsersCSV(t *testing.T) {
	srv := newTestServer(t, "development", nil)
	login(t, srv)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/users/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "a@x.com") {
		t.Fatalf("unexpected csv body: %q", rec.Body.String())
	}
}

func TestStatusChecks(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/status", strings.NewReader(`{"client_name":"web"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[statusCheckResponse](t, rec)
	if created.ClientName != "web" || created.Timestamp.IsZero() {
		t.Fatalf("unexpected status check: %+v", created)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/status", strings.NewReader(`{"client_name":"  "}`))
	if rec := srv.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank client name, got %d", rec.Code)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if checks := decodeBody[[]statusCheckResponse](t, rec); len(checks) != 1 {
		t.Fatalf("expected one status check, got %d", len(checks))
	}
}

func TestHelloAndHealth(t *testing.T) {
	srv := newTestServer(t, "development", nil)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/", nil))
	if rec.Code != http.StatusOK || decodeBody[map[string]string](t, rec)["message"] != "Hello World" {
		t.Fatalf("unexpected hello response %d", rec.Code)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}

	down := newTestServer(t, "development", pingerStub{err: errors.New("down")})
	if rec := down.do(httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when store is down, got %d", rec.Code)
	}
}
