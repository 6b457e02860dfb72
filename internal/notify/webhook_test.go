package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/mfarias/rates-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

func TestNewWebhookNotifier_EmptyURL(t *testing.T) {
	notifier, err := NewWebhookNotifier(zerolog.Nop(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier != nil {
		t.Fatal("expected nil notifier for empty url")
	}
}

func TestNewWebhookNotifier_BadTemplate(t *testing.T) {
	_, err := NewWebhookNotifier(zerolog.Nop(), "https://example.com/hook", "{{ .Broken")
	if err == nil {
		t.Fatal("expected template parse error")
	}
}

func TestWebhookNotifier_PostsDefaultPayload(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transitions := []transition.IndicatorTransition{{
		Name:     state.IndicatorRepoRates,
		Previous: state.StatusOK,
		Current:  state.StatusFallback,
	}}
	if err := notifier.Notify(context.Background(), transitions); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Transitions []transition.IndicatorTransition `json:"transitions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload is not valid json: %v (%s)", err, body)
	}
	if len(payload.Transitions) != 1 || payload.Transitions[0].Name != state.IndicatorRepoRates {
		t.Fatalf("unexpected payload: %s", body)
	}
}

func TestWebhookNotifier_CustomTemplate(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, `{"count":{{ len .Transitions }}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := notifier.Notify(context.Background(), sampleTransitions(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"count":2}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestWebhookNotifier_NoTransitionsNoPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := notifier.Notify(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
