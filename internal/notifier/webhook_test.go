package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/labelflow/internal/domain"
)

func rejectionEntry() domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:         "act-1",
		ActorID:    "reviewer-1",
		Action:     domain.ActionItemRejected,
		TargetType: domain.TargetWorkItem,
		TargetID:   "item-1",
		Detail:     map[string]any{"feedback": "loose box"},
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestWebhookNotifierSuccess(t *testing.T) {
	t.Parallel()

	var (
		gotBody    webhookEvent
		gotEventID string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotEventID = r.Header.Get("X-Event-ID")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Request-ID", "hook-req-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}

	receipt, err := n.Notify(context.Background(), rejectionEntry())
	if err != nil {
		t.Fatalf("Notify() unexpected error: %v", err)
	}

	if receipt.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", receipt.StatusCode, http.StatusAccepted)
	}
	if receipt.RequestID != "hook-req-1" {
		t.Fatalf("RequestID = %q, want %q", receipt.RequestID, "hook-req-1")
	}
	if gotEventID != "act-1" {
		t.Fatalf("X-Event-ID = %q, want act-1", gotEventID)
	}
	if gotBody.Event != "item_rejected" {
		t.Fatalf("event = %q, want item_rejected", gotBody.Event)
	}
	if gotBody.TargetID != "item-1" || gotBody.Detail["feedback"] != "loose box" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestWebhookNotifierStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "gone is permanent", statusCode: http.StatusGone, wantTransient: false},
		{name: "bad gateway is transient", statusCode: http.StatusBadGateway, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("subscriber failed"))
			}))
			defer server.Close()

			n, err := NewWebhookNotifier(server.URL)
			if err != nil {
				t.Fatalf("NewWebhookNotifier() error = %v", err)
			}

			_, err = n.Notify(context.Background(), rejectionEntry())
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var deliveryErr *DeliveryError
			if !errors.As(err, &deliveryErr) {
				t.Fatalf("expected DeliveryError, got %T", err)
			}
			if deliveryErr.StatusCode != tc.statusCode {
				t.Fatalf("DeliveryError.StatusCode = %d, want %d", deliveryErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestWebhookNotifierTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	n, err := NewWebhookNotifierWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewWebhookNotifierWithClient() error = %v", err)
	}

	_, err = n.Notify(context.Background(), rejectionEntry())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestWebhookNotifierRejectsIncompleteEntry(t *testing.T) {
	t.Parallel()

	n, err := NewWebhookNotifier("http://localhost:1/hook")
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}

	_, err = n.Notify(context.Background(), domain.ActivityEntry{Action: domain.ActionBatchSubmitted})
	if err == nil {
		t.Fatal("expected error for entry without id")
	}
	if IsTransient(err) {
		t.Fatal("incomplete entry should be permanent")
	}
}

func TestNewWebhookNotifierValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewWebhookNotifier(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewWebhookNotifier("not a url"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewWebhookNotifierWithClient("http://localhost/hook", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
