package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/smartpay/smartpay-api/internal/pkg/idempotency"
	"github.com/smartpay/smartpay-api/internal/pkg/logger"
	"github.com/smartpay/smartpay-api/internal/pkg/response"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
	idempotencyLease        = time.Minute
)

// Idempotent replays the stored response when a request repeats an
// Idempotency-Key. It must run after Auth: keys are scoped per account.
func Idempotent(store idempotency.Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				response.BadRequest(w, "Idempotency-Key is too long")
				return
			}

			scoped := GetUserID(r.Context()).String() + ":" + r.Method + ":" + r.URL.Path + ":" + key

			rec, err := store.Begin(r.Context(), scoped, idempotencyLease)
			switch {
			case errors.Is(err, idempotency.ErrInProgress):
				response.Conflict(w, "IDEMPOTENCY_IN_PROGRESS", "A request with this Idempotency-Key is still in progress")
				return
			case err != nil:
				logger.LogError(r.Context(), err, "Idempotency lookup failed")
				response.InternalError(w)
				return
			case rec != nil:
				logger.LogDebug(r.Context(), "Idempotent replay", "status", rec.Status)
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(IdempotentReplayedHeader, "true")
				w.WriteHeader(rec.Status)
				w.Write(rec.Body)
				return
			}

			// the request context may already be cancelled
			release := func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
				defer cancel()
				if err := store.Release(ctx, scoped); err != nil {
					logger.LogWarn(r.Context(), "Idempotency key release failed", "error", err.Error())
				}
			}

			// a panicking handler must not leave the key pending until the lease ends
			returned := false
			defer func() {
				if !returned {
					release()
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			returned = true

			if capture.status >= http.StatusInternalServerError {
				release()
				return
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
			defer cancel()
			err = store.Complete(ctx, scoped, idempotency.Record{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}, ttl)
			if err != nil {
				logger.LogWarn(r.Context(), "Idempotency record save failed", "error", err.Error())
			}
		})
	}
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
