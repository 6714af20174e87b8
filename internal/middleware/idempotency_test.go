package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/payvost/corebanking/internal/logging"
)

type idempotencyApp struct {
	app   *fiber.App
	mr    *miniredis.Miniredis
	calls *atomic.Int32
}

func setupTestApp(t *testing.T) idempotencyApp {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	calls := &atomic.Int32{}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/transfer", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "call": n})
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false})
	})
	app.Post("/rejected", func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusBadRequest, "Insufficient funds")
	})

	return idempotencyApp{app: app, mr: mr, calls: calls}
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body), resp.Header.Get(replayedHeader)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	s := setupTestApp(t)

	for i := 0; i < 2; i++ {
		status, _, _ := post(t, s.app, "/transfer", "")
		if status != fiber.StatusOK {
			t.Fatalf("expected %d got %d", fiber.StatusOK, status)
		}
	}
	if s.calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, ran %d", s.calls.Load())
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	s := setupTestApp(t)

	status, payload, replayed := post(t, s.app, "/transfer", "abc123")
	if status != fiber.StatusOK || replayed != "" {
		t.Fatalf("unexpected first response: %d replayed=%q", status, replayed)
	}

	status, cachedPayload, replayed := post(t, s.app, "/transfer", "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if replayed != "true" {
		t.Fatalf("expected replay header")
	}
	if cachedPayload != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cachedPayload)
	}
	if s.calls.Load() != 1 {
		t.Fatalf("handler must run once, ran %d", s.calls.Load())
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cachedPayload), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyInFlightDuplicateConflicts(t *testing.T) {
	s := setupTestApp(t)
	if err := s.mr.Set(idempotencyPrefix+"POST:/transfer:busy", inProgressMarker); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	status, body, _ := post(t, s.app, "/transfer", "busy")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d (%s)", fiber.StatusConflict, status, body)
	}
	if s.calls.Load() != 0 {
		t.Fatalf("handler must not run for in-flight duplicate")
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	s := setupTestApp(t)

	for _, path := range []string{"/broken", "/rejected"} {
		post(t, s.app, path, "retry-me")
		post(t, s.app, path, "retry-me")
		if s.mr.Exists(idempotencyPrefix + "POST:" + path + ":retry-me") {
			t.Fatalf("%s: failed responses must not be stored", path)
		}
	}
	if s.calls.Load() != 4 {
		t.Fatalf("failed requests must be retried, handler ran %d times", s.calls.Load())
	}
}

func TestIdempotencyKeysAreScopedByPath(t *testing.T) {
	s := setupTestApp(t)

	post(t, s.app, "/transfer", "shared")
	post(t, s.app, "/rejected", "shared")
	if s.calls.Load() != 2 {
		t.Fatalf("same key on different paths must not collide, calls=%d", s.calls.Load())
	}
}
