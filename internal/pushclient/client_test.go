package pushclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendSkipShortCircuits(t *testing.T) {
	c := New("http://push.invalid", true)
	res, err := c.Send(context.Background(), Notification{To: "device-1", Title: "hi"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("status = %q, want ok", res.Status)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("health with skip: %v", err)
	}
}

func TestSendPostsNotification(t *testing.T) {
	var received Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Result{Status: "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	res, err := c.Send(context.Background(), Notification{To: "device-1", Title: "Pickup", Body: "Jane was picked up"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("status = %q, want ok", res.Status)
	}
	if received.To != "device-1" || received.Title != "Pickup" {
		t.Errorf("gateway received %+v", received)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	c := New("http://push.invalid", false)
	if _, err := c.Send(context.Background(), Notification{Title: "no recipient"}); err == nil {
		t.Error("expected error for missing recipient")
	}
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	if _, err := c.Send(context.Background(), Notification{To: "device-1"}); err == nil {
		t.Error("expected error on gateway failure")
	}
}

func TestHealthUnhealthyGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	if err := c.Health(context.Background()); err == nil {
		t.Error("expected unhealthy gateway error")
	}
}
