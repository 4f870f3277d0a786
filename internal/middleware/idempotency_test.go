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

	"github.com/office360/treasury/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var hits atomic.Int64
	app.Post("/postings", func(c *fiber.Ctx) error {
		n := hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"posting": n})
	})
	app.Post("/refunds", func(c *fiber.Ctx) error {
		n := hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"refund": n})
	})
	app.Get("/postings", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, &hits, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/postings", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	send := func() map[string]any {
		req := httptest.NewRequest(fiber.MethodPost, "/postings", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("Idempotency-Key", "pay-42")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return payload
	}

	first := send()
	second := send()

	if hits.Load() != 1 {
		t.Fatalf("handler must run once, ran %d times", hits.Load())
	}
	if first["posting"] != second["posting"] {
		t.Fatalf("replayed body differs: %v vs %v", first, second)
	}
}

func TestIdempotencyDistinctKeysPostSeparately(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	for _, key := range []string{"pay-1", "pay-2"} {
		req := httptest.NewRequest(fiber.MethodPost, "/postings", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("Idempotency-Key", key)
		if _, err := app.Test(req); err != nil {
			t.Fatalf("test request: %v", err)
		}
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two postings, got %d", hits.Load())
	}
}

func TestIdempotencyKeyScopedToRoute(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	for _, path := range []string{"/postings", "/refunds"} {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("Idempotency-Key", "op-7")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected 201 on %s, got %d", path, resp.StatusCode)
		}
	}
	if hits.Load() != 2 {
		t.Fatalf("same key on different routes must post separately, got %d hits", hits.Load())
	}
}

func TestIdempotencySkipsReads(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodGet, "/postings", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 without key, got %d", resp.StatusCode)
	}
}
