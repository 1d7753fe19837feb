package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorContext(t *testing.T) {
	var gotID int64
	var gotOK bool
	handler := ActorContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = ActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("ValidHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/accounts/1", nil)
		req.Header.Set("X-User-ID", "42")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.True(t, gotOK)
		assert.Equal(t, int64(42), gotID)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/accounts/1", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.False(t, gotOK)
		assert.Equal(t, int64(0), gotID)
	})

	t.Run("NonNumericHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/accounts/1", nil)
		req.Header.Set("X-User-ID", "alice")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.False(t, gotOK)
	})
}

func TestRequireActor(t *testing.T) {
	handler := ActorContext(RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("WithActor", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin/entries/1/reverse", nil)
		req.Header.Set("X-User-ID", "7")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("WithoutActor", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin/entries/1/reverse", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/accounts/1/balance", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
