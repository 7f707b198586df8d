package actor

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/pkg/logger"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims issued by the site's auth service.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens and extracts the actor identity.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for HMAC-signed tokens.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the actor it identifies.
func (v *TokenVerifier) Verify(tokenString string) (models.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, ErrExpiredToken
		}
		return models.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return models.Actor{}, ErrInvalidToken
	}

	return models.Actor{
		ID:   claims.Subject,
		Name: claims.Name,
		Role: claims.Role,
	}, nil
}

// IssueToken mints a token for the given actor. Only tests and local
// tooling use this; production tokens come from the auth service.
func (v *TokenVerifier) IssueToken(a models.Actor, ttl time.Duration) (string, error) {
	claims := Claims{
		Name: a.Name,
		Role: a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Middleware attaches the verified actor to the request context. Requests
// without a token pass through unchanged; the provider falls back to the
// system actor for them. Requests with a bad token are rejected.
func Middleware(verifier *TokenVerifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			a, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				log.Warn("rejected bearer token", "error", err, "path", r.URL.Path)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}
