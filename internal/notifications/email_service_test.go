package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBrevoSend(t *testing.T) {
	var got brevoPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"abc"}`))
	}))
	defer server.Close()

	svc := NewBrevoService("key", "noreply@example.com", "Growth", map[string]int64{"waitlist_invitation": 7})
	svc.Endpoint = server.URL

	err := svc.Send(context.Background(), "user@example.com", "waitlist_invitation", map[string]string{"code": "INV-AB12CD"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.TemplateID != 7 {
		t.Errorf("expected template 7, got %d", got.TemplateID)
	}
	if got.Params["code"] != "INV-AB12CD" {
		t.Errorf("expected code param, got %v", got.Params)
	}
}

func TestBrevoSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer server.Close()

	svc := NewBrevoService("key", "noreply@example.com", "Growth", map[string]int64{"waitlist_invitation": 7})
	svc.Endpoint = server.URL

	if err := svc.Send(context.Background(), "user@example.com", "waitlist_invitation", nil); err == nil {
		t.Fatalf("expected error on 400 response")
	}
	if err := svc.Send(context.Background(), "user@example.com", "unknown_template", nil); err == nil {
		t.Fatalf("expected error for unconfigured template")
	}
	if err := svc.Send(context.Background(), "not-an-email", "waitlist_invitation", nil); err == nil {
		t.Fatalf("expected error for invalid recipient")
	}
}

func TestNewBrevoServiceUnconfigured(t *testing.T) {
	if svc := NewBrevoService("", "", "", nil); svc != nil {
		t.Errorf("expected nil service without credentials")
	}
}
