package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/pkg/idempotency"
)

func withUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserIDKey, id))
}

func TestIdempotentReplaysCompletedResponse(t *testing.T) {
	var calls atomic.Int32
	h := Idempotent(idempotency.NewMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))
	user := uuid.New()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/payment", nil)
		req.Header.Set(IdempotencyKeyHeader, "abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withUser(req, user))
		return w
	}

	first := send()
	second := send()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotentKeysAreScopedPerAccount(t *testing.T) {
	var calls atomic.Int32
	h := Idempotent(idempotency.NewMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/add-money", nil)
		req.Header.Set(IdempotencyKeyHeader, "same-key")
		h.ServeHTTP(httptest.NewRecorder(), withUser(req, user))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	var calls atomic.Int32
	h := Idempotent(idempotency.NewMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	user := uuid.New()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/payment", nil)
		req.Header.Set(IdempotencyKeyHeader, "retry-me")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withUser(req, user))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusServiceUnavailable, http.StatusOK}, codes)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store := idempotency.NewMemoryStore()
	user := uuid.New()
	path := "/api/wallet/payment"
	_, err := store.Begin(context.Background(), user.String()+":"+http.MethodPost+":"+path+":k1", time.Minute)
	require.NoError(t, err)

	h := Idempotent(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(IdempotencyKeyHeader, "k1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, withUser(req, user))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_IN_PROGRESS")
}

func TestIdempotentWithoutKeyPassesThrough(t *testing.T) {
	var calls atomic.Int32
	h := Idempotent(idempotency.NewMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotentReleasesKeyWhenHandlerPanics(t *testing.T) {
	var calls atomic.Int32
	h := Recover(Idempotent(idempotency.NewMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusOK)
	})))
	user := uuid.New()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/add-money", nil)
		req.Header.Set(IdempotencyKeyHeader, "panicky")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withUser(req, user))
		return w
	}

	first := send()
	assert.Equal(t, http.StatusInternalServerError, first.Code)

	// the retry runs instead of hitting IDEMPOTENCY_IN_PROGRESS
	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, second.Header().Get(IdempotentReplayedHeader))
}
