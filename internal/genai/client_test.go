package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/benkyo/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestChat(t *testing.T) {
	var got generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.Header.Get("x-goog-api-key"); key != "test-key" {
			t.Errorf("unexpected API key header %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"The answer is 42."}]}}]}`)
	})

	history := []models.Turn{
		{Role: models.RoleUser, Text: "earlier question"},
		{Role: models.RoleModel, Text: "earlier answer"},
	}
	answer, err := client.Chat(context.Background(), "be terse", history, "what now?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "The answer is 42." {
		t.Errorf("unexpected answer %q", answer)
	}

	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be terse" {
		t.Errorf("system instruction not forwarded: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got.Contents))
	}
	if got.Contents[1].Role != models.RoleModel {
		t.Errorf("history role not preserved: %q", got.Contents[1].Role)
	}
	last := got.Contents[2]
	if last.Role != models.RoleUser || last.Parts[0].Text != "what now?" {
		t.Errorf("message not appended as newest user turn: %+v", last)
	}
}

func TestChatConcatenatesParts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"world"}]}}]}`)
	})
	answer, err := client.Chat(context.Background(), "", nil, "hi")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "Hello world" {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestEmbed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-embedding-001:embedContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	})
	vec, err := client.Embed(context.Background(), "some chunk text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestQuotaOnHTTP429(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"rate limited","status":"RESOURCE_EXHAUSTED"}}`)
	})
	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("expected ErrQuota, got %v", err)
	}
}

func TestQuotaOnResourceExhaustedStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quota exceeded for project","status":"RESOURCE_EXHAUSTED"}}`)
	})
	_, err := client.Chat(context.Background(), "", nil, "hi")
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("expected ErrQuota, got %v", err)
	}
}

func TestNonQuotaErrorIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`)
	})
	_, err := client.Chat(context.Background(), "", nil, "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrQuota) {
		t.Fatalf("400 must not be treated as quota: %v", err)
	}
}

func TestIsQuotaErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrQuota, true},
		{fmt.Errorf("wrapped: %w", ErrQuota), true},
		{errors.New("couldn't embed: status 429: quota exceeded"), true},
		{errors.New("RESOURCE_EXHAUSTED: per-minute limit"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaErr(tc.err); got != tc.want {
			t.Errorf("IsQuotaErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
