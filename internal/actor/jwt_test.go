package actor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/pkg/logger"
)

var admin = models.Actor{ID: "USER001", Name: "Marie Koné", Role: "admin"}

func TestVerify_RoundTrip(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token, err := v.IssueToken(admin, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, admin, got)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewTokenVerifier("secret-a").IssueToken(admin, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenVerifier("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token, err := v.IssueToken(admin, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := NewTokenVerifier("test-secret").Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	var seen models.Actor
	var present bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, present = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(v, logger.Nop())(next)

	t.Run("valid token attaches actor", func(t *testing.T) {
		token, err := v.IssueToken(admin, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, present)
		assert.Equal(t, admin, seen)
	})

	t.Run("no token passes through without actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, present)
	})

	t.Run("bad token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestProviders(t *testing.T) {
	fallback := models.Actor{ID: "SYSTEM", Name: "Système", Role: "system"}

	p := ContextProvider{Fallback: fallback}
	assert.Equal(t, fallback, p.Resolve(context.Background()))

	ctx := WithActor(context.Background(), admin)
	assert.Equal(t, admin, p.Resolve(ctx))

	static := StaticProvider{Actor: admin}
	assert.Equal(t, admin, static.Resolve(context.Background()))
}
