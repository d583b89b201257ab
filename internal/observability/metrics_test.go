package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkflowCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.ObserveTransition("Submit", nil)
	metrics.ObserveTransition("submit", errors.New("incomplete"))
	metrics.IncAssignmentSkipped("NOT_PENDING")
	metrics.IncReviewVerdict("REJECTED")
	metrics.IncActivityPublishFailure()
	metrics.IncActivityProcessed("persisted")
	metrics.ObserveWebhookDuration(120 * time.Millisecond)
	metrics.IncWorkerInFlight()
	metrics.DecWorkerInFlight()

	if got := testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues("submit", "ok")); got != 1 {
		t.Fatalf("workflow_transitions_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues("submit", "error")); got != 1 {
		t.Fatalf("workflow_transitions_total{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.assignmentSkippedTotal.WithLabelValues("not_pending")); got != 1 {
		t.Fatalf("assignment_skipped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.reviewVerdictsTotal.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("review_verdicts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.activityPublishFailures); got != 1 {
		t.Fatalf("activity_publish_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.activityProcessedTotal.WithLabelValues("persisted")); got != 1 {
		t.Fatalf("activity_processed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.ObserveTransition("start", nil)
	metrics.IncAssignmentSkipped("duplicate")
	metrics.IncWorkerInFlight()
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
