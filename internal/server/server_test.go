package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shinyyama/campus-exchange/internal/config"
	"github.com/shinyyama/campus-exchange/internal/metrics"
	appmw "github.com/shinyyama/campus-exchange/internal/middleware"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/service"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AuthMode:              "none",
		UploadMaxBytes:        1 << 20,
		RateLimitRPS:          100,
		RateLimitBurst:        100,
		RequestTTLHours:       168,
		AllowedOriginSuffixes: []string{"vercel.app"},
		GitSHA:                "abc123",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(nil, Deps{
		Config:   testConfig(),
		Verifier: appmw.DevVerifier{},
		Hub:      realtime.NewHub(nil),
		Metrics:  metrics.New(),
	})
}

func do(s *Server, method, path, uid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"git_sha":"abc123"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestDatabaseNotReadyIs503(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/api/listings", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unavailable"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/me", "/api/me/matches", "/api/me/notifications", "/api/realtime"} {
		rec := do(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := do(s, http.MethodPost, "/api/listings", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(s, http.MethodGet, "/healthz", "")

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `campus_exchange_http_requests_total{method="GET",path="/healthz",status="200"} 1`))
}

func TestWritesAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.0001
	cfg.RateLimitBurst = 1
	s := New(nil, Deps{Config: cfg, Verifier: appmw.DevVerifier{}})

	first := do(s, http.MethodPost, "/api/listings/1/interest", "u-1")
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	second := do(s, http.MethodPost, "/api/listings/1/interest", "u-1")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestOriginAllowed(t *testing.T) {
	allow := originAllowed([]string{"vercel.app", ".campus.example.edu"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://127.0.0.1:5173", true},
		{"https://campus-exchange.vercel.app", true},
		{"https://vercel.app", true},
		{"https://notvercel.app", false},
		{"https://market.campus.example.edu", true},
		{"ftp://campus-exchange.vercel.app", false},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		got, err := allow(tt.origin)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.origin)
	}
}

type matchLookup struct {
	service.MatchService
	participants map[string]bool
}

func (m matchLookup) Get(_ context.Context, id uint64, uid string) (*service.MatchView, error) {
	if !m.participants[uid] {
		return nil, service.ErrForbidden
	}
	return &service.MatchView{Match: model.Match{ID: id}}, nil
}

func TestTopicAuthorizer(t *testing.T) {
	authorize := topicAuthorizer(matchLookup{participants: map[string]bool{"seller": true}})
	ctx := context.Background()

	assert.NoError(t, authorize(ctx, "u-1", realtime.Topic{Kind: realtime.KindUser, UID: "u-1"}))
	assert.ErrorIs(t, authorize(ctx, "u-1", realtime.Topic{Kind: realtime.KindUser, UID: "u-2"}), service.ErrForbidden)
	assert.NoError(t, authorize(ctx, "seller", realtime.Topic{Kind: realtime.KindMatch, MatchID: 4}))
	assert.ErrorIs(t, authorize(ctx, "stranger", realtime.Topic{Kind: realtime.KindMatch, MatchID: 4}), service.ErrForbidden)
	assert.ErrorIs(t, authorize(ctx, "u-1", realtime.Topic{Kind: "room"}), service.ErrForbidden)
}

func TestRedactURI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/listings", "/api/listings"},
		{"/api/listings?status=all&q=lamp", "/api/listings?status=all&q=lamp"},
		{"/api/realtime?access_token=abc.def", "/api/realtime?access_token=REDACTED"},
		{"/api/realtime?x=1&access_token=abc", "/api/realtime?access_token=REDACTED&x=1"},
		{"/api/realtime?access_token=%zz", "/api/realtime"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, redactURI(tt.in), tt.in)
	}
}

func TestAccessLogHidesQueryToken(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/me/matches?access_token=SECRET-TOKEN-123", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var logged bool
	for _, entry := range hook.AllEntries() {
		uri, ok := entry.Data["uri"].(string)
		if !ok || !strings.HasPrefix(uri, "/api/me/matches") {
			continue
		}
		logged = true
		assert.NotContains(t, uri, "SECRET-TOKEN-123")
		assert.Contains(t, uri, "access_token=REDACTED")
	}
	assert.True(t, logged)
}
