package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "smartwallet:idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	storeTimeout         = 2 * time.Second
)

type storedResponse struct {
	// Fingerprint is the sha256 of the request body the response was produced for.
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Body        []byte            `json:"body"`
	Headers     map[string]string `json:"headers"`
}

// Idempotency replays the stored response of a POST or PUT that carried the
// same Idempotency-Key for the same caller. Requests without the header pass
// through. 5xx responses are not stored so the client may retry. Reusing a key
// with a different body is answered with 422.
func Idempotency(client redis.Cmdable, ttl time.Duration, scopeHeader string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || (r.Method != http.MethodPost && r.Method != http.MethodPut) {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := idempotencyPrefix + r.Header.Get(scopeHeader) + ":" + r.Method + ":" + r.URL.Path + ":" + key

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "unable to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			fingerprint := hex.EncodeToString(sum[:])

			ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
			reserved, err := client.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
			cancel()
			if err != nil {
				log.Error("idempotency reservation failed", logger.StringField("key", key), logger.ErrorField("error", err))
				writeJSONError(w, http.StatusInternalServerError, "idempotency store failure")
				return
			}
			if !reserved {
				replay(w, r, client, cacheKey, key, fingerprint, log)
				return
			}

			rec := &bufferedResponse{header: http.Header{}, status: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					forget(client, cacheKey)
				}
			}()
			next.ServeHTTP(rec, r)
			completed = true

			rec.flush(w)

			if rec.status >= http.StatusInternalServerError {
				forget(client, cacheKey)
				return
			}

			stored := storedResponse{Fingerprint: fingerprint, Status: rec.status, Body: rec.body.Bytes(), Headers: map[string]string{}}
			for name := range rec.header {
				stored.Headers[name] = rec.header.Get(name)
			}
			payload, err := json.Marshal(stored)
			if err != nil {
				log.Error("failed to encode idempotent response", logger.StringField("key", key), logger.ErrorField("error", err))
				forget(client, cacheKey)
				return
			}

			ctx, cancel = context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := client.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				log.Error("failed to persist idempotent response", logger.StringField("key", key), logger.ErrorField("error", err))
				client.Del(ctx, cacheKey)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, client redis.Cmdable, cacheKey, key, fingerprint string, log logger.Logger) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	cached, err := client.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			writeJSONError(w, http.StatusConflict, "duplicate request currently processing")
			return
		}
		log.Error("idempotency lookup failed", logger.StringField("key", key), logger.ErrorField("error", err))
		writeJSONError(w, http.StatusInternalServerError, "idempotency store failure")
		return
	}
	if cached == inProgressMarker {
		writeJSONError(w, http.StatusConflict, "duplicate request currently processing")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		log.Warn("failed to decode stored idempotent response", logger.StringField("key", key), logger.ErrorField("error", err))
		writeJSONError(w, http.StatusConflict, "duplicate request")
		return
	}
	if stored.Fingerprint != fingerprint {
		writeJSONError(w, http.StatusUnprocessableEntity, "idempotency key reused with a different request body")
		return
	}

	for name, value := range stored.Headers {
		if name == "Content-Length" || name == RequestIDHeader {
			continue
		}
		w.Header().Set(name, value)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	w.Write(stored.Body)
}

func forget(client redis.Cmdable, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	client.Del(ctx, cacheKey)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

// bufferedResponse holds the handler output until it has been stored.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(code int) {
	b.status = code
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}
