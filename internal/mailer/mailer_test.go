package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPISenderSuccess(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewAPISender(srv.URL, "test-key")
	msg := Message{
		From:    "hello@havenretreats.example",
		To:      "guest@example.com",
		Subject: "Welcome",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.To != msg.To || got.Subject != msg.Subject {
		t.Errorf("provider received %+v", got)
	}
}

func TestAPISenderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewAPISender(srv.URL, "k")
	err := sender.Send(context.Background(), Message{To: "guest@example.com"})
	if err == nil {
		t.Fatal("Send should fail on non-2xx response")
	}
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	sender := NewLogSender(nil)
	if err := sender.Send(context.Background(), Message{To: "guest@example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
