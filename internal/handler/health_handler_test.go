package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/redis/go-redis/v9"
)

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	redisPing := PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	okPing := PingFunc(func(context.Context) error { return nil })

	t.Run("livez", func(t *testing.T) {
		app := fiber.New()
		RegisterHealthRoutes(app, nil, observability.NewMetrics())

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/livez", nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz all up", func(t *testing.T) {
		app := fiber.New()
		RegisterHealthRoutes(app, map[string]Pinger{
			"postgres": okPing,
			"redis":    redisPing,
			"rabbitmq": okPing,
			"minio":    okPing,
		}, observability.NewMetrics())

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}

		var parsed struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if parsed.Status != "ready" || len(parsed.Checks) != 4 || parsed.Checks["redis"] != "ok" {
			t.Fatalf("readyz = %+v", parsed)
		}
	})

	t.Run("readyz dependency down", func(t *testing.T) {
		app := fiber.New()
		RegisterHealthRoutes(app, map[string]Pinger{
			"postgres": okPing,
			"minio":    PingFunc(func(context.Context) error { return errors.New("minio unreachable") }),
		}, observability.NewMetrics())

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
		if !strings.Contains(string(body), `"minio":"down"`) {
			t.Fatalf("body = %s, want minio down", string(body))
		}
	})
}

func TestHealthIntegration_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics()
	metrics.ObserveTransition("submit", nil)

	app := fiber.New()
	RegisterHealthRoutes(app, nil, metrics)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "workflow_transitions_total") {
		t.Fatalf("metrics body does not expose workflow_transitions_total")
	}
}
