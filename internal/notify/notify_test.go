package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	n := New("")
	base := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

	if !n.take(base) {
		t.Fatal("first alert suppressed")
	}
	if n.take(base.Add(30 * time.Second)) {
		t.Error("alert inside cooldown not suppressed")
	}
	if n.take(base.Add(60 * time.Second)) {
		t.Error("alert at exactly the cooldown not suppressed")
	}
	if !n.take(base.Add(61 * time.Second)) {
		t.Error("alert after cooldown suppressed")
	}
}

func TestSuppressedAlertDoesNotClaimWindow(t *testing.T) {
	n := New("")
	base := time.Now()

	n.take(base)
	n.take(base.Add(30 * time.Second)) // suppressed
	if !n.take(base.Add(61 * time.Second)) {
		t.Error("suppressed alert reset the cooldown window")
	}
}

func TestWebhookNtfyFormat(t *testing.T) {
	var gotTitle, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	// The URL match is on the hostname, so fake it via a path segment.
	n := New(srv.URL + "/ntfy.sh/heatlock")
	if err := n.sendWebhook(context.Background(), "Weather arb: NYC", "BUY YES"); err != nil {
		t.Fatalf("sendWebhook: %v", err)
	}
	if gotTitle != "Weather arb: NYC" {
		t.Errorf("Title header = %q", gotTitle)
	}
	if gotBody != "BUY YES" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestWebhookGenericJSON(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := New(srv.URL + "/hook")
	if err := n.sendWebhook(context.Background(), "title", "message"); err != nil {
		t.Fatalf("sendWebhook: %v", err)
	}
	if payload["title"] != "title" || payload["message"] != "message" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.sendWebhook(context.Background(), "t", "m"); err == nil {
		t.Error("no error for 403 response")
	}
}
