package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

func TestClientCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("stream must be off")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"grok-2","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "grok-2",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
	if resp.Model != "grok-2" || len(resp.Choices) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`, domain.KindProviderAuthError},
		{http.StatusForbidden, `forbidden`, domain.KindProviderAuthError},
		{http.StatusBadRequest, `{"error":{"message":"bad","type":"invalid_request_error"}}`, domain.KindProviderResponseError},
		{http.StatusServiceUnavailable, `down`, domain.KindProviderUnreachable},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "key", time.Second).CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := domain.KindOf(err); got != tc.want {
				t.Fatalf("kind = %s, want %s (%v)", got, tc.want, err)
			}
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, "", time.Second).ListModels(context.Background())
	if got := domain.KindOf(err); got != domain.KindProviderUnreachable {
		t.Fatalf("kind = %s, want ProviderUnreachable (%v)", got, err)
	}
}

func TestClientDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(server.URL, "", 0).CreateChatCompletion(ctx, &ChatCompletionRequest{Model: "m"})
	if got := domain.KindOf(err); got != domain.KindTimeout {
		t.Fatalf("kind = %s, want Timeout (%v)", got, err)
	}
}

func TestClientListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"grok-2","object":"model","created":1,"owned_by":"xai"}]}`)
	}))
	defer server.Close()

	models, err := NewClient(server.URL, "key", time.Second).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].ID != "grok-2" {
		t.Fatalf("unexpected models: %+v", models)
	}
}
