package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	idempotencyPrefix = "idempotency:v2:"
	maxIdempotencyKey = 255
	cacheOpTimeout    = 2 * time.Second
)

var (
	errReplayInFlight = fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	errReplayMismatch = fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key was used with a different request")
)

// replayRecord is what Redis holds under an idempotency key. Done is false
// while the first request is still running.
type replayRecord struct {
	Fingerprint string            `json:"fingerprint"`
	Done        bool              `json:"done"`
	Status      int               `json:"status,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type replayStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func (s replayStore) load(key string) (replayRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return replayRecord{}, false, nil
	}
	if err != nil {
		return replayRecord{}, false, err
	}
	var rec replayRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return replayRecord{}, false, err
	}
	return rec, true, nil
}

func (s replayStore) reserve(key, fingerprint string) (bool, error) {
	payload, err := json.Marshal(replayRecord{Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.cache.SetNX(ctx, key, payload, s.ttl).Result()
}

func (s replayStore) commit(key string, rec replayRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s replayStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Idempotency replays the stored response of a request whose optional
// Idempotency-Key header was seen before. Keys are scoped to the caller's
// wallet and the route, and a key reused with a different body is rejected.
// Requests that end in an error are not stored. Without Redis the header is
// ignored.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if key == "" || cache == nil {
			return c.Next()
		}
		if len(key) > maxIdempotencyKey {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key is too long")
		}

		walletID, _ := c.Locals(LocalWalletID).(string)
		cacheKey := idempotencyPrefix + walletID + ":" + c.Path() + ":" + key
		fingerprint := fingerprintOf(c)

		rec, found, err := store.load(cacheKey)
		if err != nil {
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if found {
			return replay(c, rec, fingerprint)
		}

		reserved, err := store.reserve(cacheKey, fingerprint)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return errReplayInFlight
		}

		if err := c.Next(); err != nil {
			store.release(cacheKey)
			return err
		}

		done := replayRecord{
			Fingerprint: fingerprint,
			Done:        true,
			Status:      c.Response().StatusCode(),
			Body:        string(c.Response().Body()),
			Headers:     map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			done.Headers[string(k)] = string(v)
		})
		if err := store.commit(cacheKey, done); err != nil {
			// The operation itself succeeded; a retry with this key will run it again.
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, rec replayRecord, fingerprint string) error {
	if rec.Fingerprint != fingerprint {
		return errReplayMismatch
	}
	if !rec.Done {
		return errReplayInFlight
	}
	for header, value := range rec.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(rec.Status).SendString(rec.Body)
}

func fingerprintOf(c *fiber.Ctx) string {
	sum := sha256.New()
	sum.Write([]byte(c.Method()))
	sum.Write([]byte{0})
	sum.Write([]byte(c.Path()))
	sum.Write([]byte{0})
	sum.Write(c.Body())
	return hex.EncodeToString(sum.Sum(nil))
}
