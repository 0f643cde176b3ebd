package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/enterprisecrm/backend/internal/infrastructure/cache"
	"github.com/enterprisecrm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key of a retryable POST
	IdempotencyKeyHeader   = "Idempotency-Key"
	// IdempotentReplayHeader is set on responses served from the store
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// IdempotencyConfig configures the Idempotency middleware
type IdempotencyConfig struct {
	Store  cache.ResponseStore
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency replays the stored response of a POST whose Idempotency-Key was
// seen before. Keys are scoped to the authenticated user. Reusing a key with a
// different request is rejected, as is a retry while the first attempt is
// still running. Server errors are not stored. When the store fails the
// request proceeds without replay protection.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abort(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := readBody(c)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abort(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge,
					"Request body exceeds maximum allowed size")
				return
			}
			abort(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Failed to read request body")
			return
		}

		ctx := c.Request.Context()
		storeKey := idempotencyScope(c) + ":" + key
		fingerprint := requestFingerprint(c.Request.Method, c.Request.URL.Path, body)
		log := cfg.Logger.With(zap.String("idempotency_key", key), zap.String("path", c.Request.URL.Path))

		stored, err := cfg.Store.Get(ctx, storeKey)
		switch {
		case errors.Is(err, cache.ErrKeyInFlight):
			abort(c, http.StatusConflict, dto.ErrCodeIdempotencyInUse,
				"A request with this Idempotency-Key is still being processed")
			return
		case err != nil:
			log.Warn("Idempotency store unavailable, processing without replay", zap.Error(err))
			c.Next()
			return
		case stored != nil:
			if stored.Fingerprint != fingerprint {
				abort(c, http.StatusUnprocessableEntity, dto.ErrCodeIdempotencyReused,
					"Idempotency-Key was already used for a different request")
				return
			}
			c.Header(IdempotentReplayHeader, "true")
			c.Data(stored.StatusCode, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		reserved, err := cfg.Store.Reserve(ctx, storeKey, cfg.TTL)
		if err != nil {
			log.Warn("Idempotency store unavailable, processing without replay", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			abort(c, http.StatusConflict, dto.ErrCodeIdempotencyInUse,
				"A request with this Idempotency-Key is still being processed")
			return
		}

		// The client may disconnect before the response is stored
		storeCtx := context.WithoutCancel(ctx)
		release := func() {
			if err := cfg.Store.Release(storeCtx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		finished := false
		defer func() {
			// A panicking handler unwinds past this point to the recovery middleware
			if !finished {
				release()
			}
		}()
		c.Next()
		finished = true

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}
		if err := cfg.Store.Complete(storeCtx, storeKey, cache.StoredResponse{
			Fingerprint: fingerprint,
			StatusCode:  status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		}, cfg.TTL); err != nil {
			log.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func idempotencyScope(c *gin.Context) string {
	if userID, ok := GetJWTUserID(c); ok {
		return "user:" + userID.String()
	}
	return "ip:" + c.ClientIP()
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder copies the response body while it is written
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
