package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/reqctx"
	"github.com/shinyyama/campus-exchange/internal/service"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessTokenParam is the query parameter carrying the token on websocket upgrades.
const AccessTokenParam = "access_token"

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UID   string
	Email string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// FirebaseVerifier checks Firebase ID tokens and doubles as the user directory.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := tok.Claims["email"].(string)
	return &Identity{UID: tok.UID, Email: email}, nil
}

func (v *FirebaseVerifier) LookupUser(ctx context.Context, uid string) (*service.DirectoryUser, error) {
	user, err := v.client.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &service.DirectoryUser{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}, nil
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. The subject
// claim is the uid.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	return &Identity{UID: sub, Email: email}, nil
}

// Issue signs a token for uid. Used by the seed tool and tests.
func (v *JWTVerifier) Issue(uid, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": uid,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	if email != "" {
		claims["email"] = email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// DevVerifier trusts the token as "<uid>" or "<uid>:<email>". Local development only.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	uid, email, _ := strings.Cut(strings.TrimSpace(token), ":")
	if uid == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: uid, Email: email}, nil
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing token"))
		}
		id, err := m.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid_token", "invalid token"))
		}
		c.Set("uid", id.UID)
		c.Set("email", id.Email)
		req := c.Request()
		c.SetRequest(req.WithContext(reqctx.WithUID(req.Context(), id.UID)))
		return next(c)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so only those may pass the access_token query parameter.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if !websocket.IsWebSocketUpgrade(r) {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(AccessTokenParam))
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}
}
