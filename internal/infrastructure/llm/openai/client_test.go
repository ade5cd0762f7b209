package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.calls++
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

type recordedCall struct {
	mode    string
	outcome string
}

type fakeObserver struct {
	calls []recordedCall
}

func (f *fakeObserver) ObserveModelCall(mode, outcome string, _ time.Duration) {
	f.calls = append(f.calls, recordedCall{mode: mode, outcome: outcome})
}

func completionHandler(t *testing.T, content string, captured *chatRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
		_, _ = w.Write(payload)
	}
}

func TestClientWithoutKeyIsInert(t *testing.T) {
	client := New(Config{})

	text, ok, err := client.Generate(context.Background(), "aGVsbG8=", "prompt")
	if ok || err != nil || text != "" {
		t.Fatalf("Generate() = (%q, %v, %v), want inert", text, ok, err)
	}
	events, ok, err := client.Stream(context.Background(), "aGVsbG8=", "prompt")
	if ok || err != nil || events != nil {
		t.Fatalf("Stream() = (%v, %v, %v), want inert", events, ok, err)
	}
	if _, ok, _ := client.TestConnection(context.Background()); ok {
		t.Fatalf("TestConnection() reported a configured client")
	}
}

func TestGenerateBuildsVisionRequest(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(completionHandler(t, "  Quiet Harbor  \n", &captured))
	defer server.Close()

	sampling := DefaultSamplingParams()
	limiter := &fakeLimiter{allowed: true}
	client := New(Config{APIKey: "secret", BaseURL: server.URL, Sampling: &sampling, CuratorPrefix: true}, WithRateLimiter(limiter))

	text, ok, err := client.Generate(context.Background(), "data:image/png;base64,aGVsbG8=", "Describe it.")
	if err != nil || !ok {
		t.Fatalf("Generate() error = %v ok = %v", err, ok)
	}
	if text != "Quiet Harbor" {
		t.Fatalf("Generate() = %q", text)
	}
	if limiter.calls != 1 || limiter.keys[0] != RateLimitKey {
		t.Fatalf("limiter calls = %d keys = %v", limiter.calls, limiter.keys)
	}

	if captured.Model != DefaultModel {
		t.Fatalf("model = %q", captured.Model)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.9 || captured.PresencePenalty == nil || *captured.PresencePenalty != 0.5 {
		t.Fatalf("sampling params not sent: %+v", captured)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
	parts := captured.Messages[0].Content
	if !strings.HasPrefix(parts[0].Text, curatorPrefix) || !strings.HasSuffix(parts[0].Text, "Describe it.") {
		t.Fatalf("prompt = %q", parts[0].Text)
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("image part = %+v", parts[1])
	}
}

func TestGenerateOmitsSamplingWhenDisabled(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(completionHandler(t, "ok", &captured))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	if _, _, err := client.Generate(context.Background(), "aGVsbG8=", "p"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if captured.Temperature != nil || captured.TopP != nil {
		t.Fatalf("sampling params sent while disabled: %+v", captured)
	}
	if captured.Messages[0].Content[1].ImageURL.URL != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("default mime not applied: %s", captured.Messages[0].Content[1].ImageURL.URL)
	}
	if captured.Messages[0].Content[0].Text != "p" {
		t.Fatalf("prefix applied while disabled: %q", captured.Messages[0].Content[0].Text)
	}
}

func TestGenerateRejectedByLimiterSkipsRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	observer := &fakeObserver{}
	client := New(Config{APIKey: "secret", BaseURL: server.URL}, WithRateLimiter(&fakeLimiter{allowed: false}), WithObserver(observer))

	_, ok, err := client.Generate(context.Background(), "aGVsbG8=", "p")
	if !ok || !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("Generate() ok = %v err = %v, want rate limited", ok, err)
	}
	if requests != 0 {
		t.Fatalf("request sent despite denial")
	}
	if len(observer.calls) != 1 || observer.calls[0].outcome != "rate_limited" {
		t.Fatalf("observer calls = %+v", observer.calls)
	}
}

func TestGenerateFailsClosedWhenLimiterErrors(t *testing.T) {
	client := New(Config{APIKey: "secret", BaseURL: "http://127.0.0.1:1"}, WithRateLimiter(&fakeLimiter{err: errors.New("redis down")}))

	_, _, err := client.Generate(context.Background(), "aGVsbG8=", "p")
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected limiter error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("store failure should not look like a quota denial")
	}
}

func TestGenerateDetectsContentFilter(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "I'm sorry, but I can't help with that.", nil))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	_, _, err := client.Generate(context.Background(), "aGVsbG8=", "p")
	if !domain.IsKind(err, domain.ErrContentFiltered) {
		t.Fatalf("expected content filtered error, got %v", err)
	}
}

func TestGenerateMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	_, _, err := client.Generate(context.Background(), "aGVsbG8=", "p")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestGenerateKeepsClientErrorsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	_, _, err := client.Generate(context.Background(), "aGVsbG8=", "p")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("401 should not be temporary")
	}
}

func TestTestConnectionSendsTextOnly(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(completionHandler(t, "Connected", &captured))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	text, ok, err := client.TestConnection(context.Background())
	if err != nil || !ok || text != "Connected" {
		t.Fatalf("TestConnection() = (%q, %v, %v)", text, ok, err)
	}
	if len(captured.Messages[0].Content) != 1 || captured.Messages[0].Content[0].Text != "Test connection" {
		t.Fatalf("unexpected probe: %+v", captured.Messages)
	}
}

func sseServer(lines ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
}

func deltaLine(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": text}}},
	})
	return "data: " + string(payload)
}

func collect(events <-chan domain.StreamEvent) ([]string, []domain.StreamEvent) {
	var deltas []string
	var terminals []domain.StreamEvent
	for event := range events {
		if event.Done || event.Err != nil {
			terminals = append(terminals, event)
			continue
		}
		deltas = append(deltas, event.Delta)
	}
	return deltas, terminals
}

func TestStreamDeliversDeltasThenDone(t *testing.T) {
	server := sseServer(deltaLine("Golden"), deltaLine(" \"hour\""), deltaLine("\nlight"), "data: [DONE]")
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	events, ok, err := client.Stream(context.Background(), "aGVsbG8=", "p")
	if err != nil || !ok {
		t.Fatalf("Stream() error = %v ok = %v", err, ok)
	}

	deltas, terminals := collect(events)
	if got := strings.Join(deltas, ""); got != `Golden "hour" light` {
		t.Fatalf("assembled = %q", got)
	}
	if len(terminals) != 1 || !terminals[0].Done {
		t.Fatalf("terminals = %+v", terminals)
	}
}

func TestStreamKeepsJSONReplyIntact(t *testing.T) {
	server := sseServer(deltaLine(`{"english": "Silent`), deltaLine(` Dawn", "chinese": "静谧黎明"}`), "data: [DONE]")
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	events, _, err := client.Stream(context.Background(), "aGVsbG8=", "p")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	deltas, terminals := collect(events)
	if len(terminals) != 1 || !terminals[0].Done {
		t.Fatalf("terminals = %+v", terminals)
	}
	text, err := aiquery.ParseBilingual(strings.Join(deltas, ""))
	if err != nil {
		t.Fatalf("ParseBilingual() error = %v", err)
	}
	if text.English != "Silent Dawn" || text.Chinese != "静谧黎明" {
		t.Fatalf("parsed = %+v", text)
	}
}

func TestStreamWithoutMarkerEndsWithError(t *testing.T) {
	server := sseServer(deltaLine("partial"))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	events, _, err := client.Stream(context.Background(), "aGVsbG8=", "p")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	deltas, terminals := collect(events)
	if len(deltas) != 1 {
		t.Fatalf("deltas = %v", deltas)
	}
	if len(terminals) != 1 || terminals[0].Err == nil {
		t.Fatalf("expected one error terminal, got %+v", terminals)
	}
}

func TestStreamReturnsStatusErrorsSynchronously(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL})
	events, ok, err := client.Stream(context.Background(), "aGVsbG8=", "p")
	if events != nil || !ok || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("Stream() = (%v, %v, %v)", events, ok, err)
	}
}

func TestRemoveBase64Prefix(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "data:image/jpeg;base64,QUJD", want: "QUJD"},
		{input: "QUJD", want: "QUJD"},
		{input: "  data:image/png;base64,eA==", want: "eA=="},
	}
	for _, tc := range cases {
		if got := RemoveBase64Prefix(tc.input); got != tc.want {
			t.Fatalf("RemoveBase64Prefix(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
