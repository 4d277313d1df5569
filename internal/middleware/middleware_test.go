package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoami(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	return c.JSON(http.StatusOK, map[string]string{
		"uid":     uid,
		"ctx_uid": reqctx.UID(c.Request().Context()),
	})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("s3cret")
	require.NoError(t, err)

	tok, err := v.Issue("u-1", "asha@iitb.ac.in", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UID)
	assert.Equal(t, "asha@iitb.ac.in", id.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v, err := NewJWTVerifier("s3cret")
	require.NoError(t, err)
	other, err := NewJWTVerifier("different")
	require.NoError(t, err)

	expired, err := v.Issue("u-1", "", -time.Minute)
	require.NoError(t, err)
	foreign, err := other.Issue("u-1", "", time.Hour)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"expired", expired},
		{"wrong secret", foreign},
		{"missing subject", noSub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("  ")
	assert.Error(t, err)
}

func TestDevVerifier(t *testing.T) {
	id, err := DevVerifier{}.Verify(context.Background(), "u-9:ravi@iitb.ac.in")
	require.NoError(t, err)
	assert.Equal(t, "u-9", id.UID)
	assert.Equal(t, "ravi@iitb.ac.in", id.Email)

	_, err = DevVerifier{}.Verify(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	v, err := NewJWTVerifier("s3cret")
	require.NoError(t, err)
	tok, err := v.Issue("u-1", "", time.Hour)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", whoami, NewAuthMiddleware(v).RequireAuth)

	t.Run("missing token", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := serve(e, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"invalid_token"`)
	})

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := serve(e, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uid":"u-1","ctx_uid":"u-1"}`, rec.Body.String())
	})

	t.Run("query param on upgrade", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		rec := serve(e, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uid":"u-1","ctx_uid":"u-1"}`, rec.Body.String())
	})

	t.Run("query param on plain request", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
	})
}

func TestRateLimiterPerKey(t *testing.T) {
	limited := 0
	rl := NewRateLimiter(0.0001, 2, func() { limited++ })

	e := echo.New()
	e.POST("/write", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, NewAuthMiddleware(DevVerifier{}).RequireAuth, rl.Middleware)

	post := func(uid string) int {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.Header.Set("Authorization", "Bearer "+uid)
		return serve(e, req).Code
	}

	assert.Equal(t, http.StatusNoContent, post("a"))
	assert.Equal(t, http.StatusNoContent, post("a"))
	assert.Equal(t, http.StatusTooManyRequests, post("a"))
	assert.Equal(t, http.StatusNoContent, post("b"))
	assert.Equal(t, 1, limited)
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.allow("old")
	now = now.Add(11 * time.Minute)
	rl.allow("fresh")

	assert.Equal(t, 1, rl.Cleanup())
	rl.mu.Lock()
	_, ok := rl.limiters["fresh"]
	rl.mu.Unlock()
	assert.True(t, ok)
}
