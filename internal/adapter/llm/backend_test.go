package llm

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpcreator/tpagent/internal/domain"
)

var testIssue = domain.IssueRecord{Key: "PROJ-123", Summary: "Fix login bug", Priority: "High", IssueType: "Bug"}

func TestGrokBackendComplete(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"grok-2","choices":[{"index":0,"message":{"role":"assistant","content":"# Plan\n"}}],"usage":{"total_tokens":42}}`)
	}))
	defer server.Close()

	cfg := domain.CloudConfig{APIKey: "key", Model: "grok-2", Temperature: 0.3, MaxTokens: 500, BaseURL: server.URL}
	out, err := NewGrokBackend(time.Second).Complete(context.Background(), testIssue, "prompt text", cfg)
	require.NoError(t, err)
	assert.Equal(t, "# Plan", out.Text)
	assert.Equal(t, 42, out.TokenUsage)
	assert.Equal(t, "grok-2", out.Model)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "prompt text", got.Messages[0].Content)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.3, *got.Temperature)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 500, *got.MaxTokens)
}

func TestGrokBackendEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`)
	}))
	defer server.Close()

	_, err := NewGrokBackend(time.Second).Complete(context.Background(), testIssue, "p",
		domain.CloudConfig{APIKey: "key", Model: "m", BaseURL: server.URL})
	assert.Equal(t, domain.KindProviderResponseError, domain.KindOf(err))
}

func TestGrokBackendMissingKey(t *testing.T) {
	_, err := NewGrokBackend(time.Second).Complete(context.Background(), testIssue, "p", domain.CloudConfig{Model: "m"})
	assert.Equal(t, domain.KindProviderAuthError, domain.KindOf(err))
}

func TestGrokBackendRejectsLocalConfig(t *testing.T) {
	_, err := NewGrokBackend(time.Second).Complete(context.Background(), testIssue, "p", domain.LocalConfig{})
	assert.Equal(t, domain.KindConfigInvalid, domain.KindOf(err))
}

func TestGrokBackendPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"grok-2"},{"id":"grok-beta"}]}`)
	}))
	defer server.Close()

	b := NewGrokBackend(time.Second)
	ok := b.Ping(context.Background(), domain.CloudConfig{APIKey: "good", Model: "grok-2", BaseURL: server.URL})
	assert.Equal(t, domain.ConnectionConnected, ok.Status)
	assert.Equal(t, []string{"grok-2", "grok-beta"}, ok.AvailableModels)

	bad := b.Ping(context.Background(), domain.CloudConfig{APIKey: "bad", Model: "grok-2", BaseURL: server.URL})
	assert.Equal(t, domain.ConnectionFailed, bad.Status)
	assert.Contains(t, bad.Message, "Check API key")

	missing := b.Ping(context.Background(), domain.CloudConfig{Model: "grok-2", BaseURL: server.URL})
	assert.Equal(t, "API key not provided", missing.Error)
}

func TestOllamaBackendComplete(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"mistral","response":"# Local plan","done":true,"prompt_eval_count":10,"eval_count":5}`)
	}))
	defer server.Close()

	cfg := domain.LocalConfig{EndpointURL: server.URL + "/", ModelName: "mistral", Temperature: 0.5}
	out, err := NewOllamaBackend(time.Second).Complete(context.Background(), testIssue, "prompt", cfg)
	require.NoError(t, err)
	assert.Equal(t, "# Local plan", out.Text)
	assert.Equal(t, 15, out.TokenUsage)
	assert.False(t, got.Stream)
	assert.Equal(t, "mistral", got.Model)
	assert.Equal(t, 0.5, got.Options.Temperature)
}

func TestOllamaBackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOllamaBackend(time.Second).Complete(context.Background(), testIssue, "p",
		domain.LocalConfig{EndpointURL: url, ModelName: "mistral"})
	assert.Equal(t, domain.KindProviderUnreachable, domain.KindOf(err))

	result := NewOllamaBackend(time.Second).Ping(context.Background(), domain.LocalConfig{EndpointURL: url})
	assert.Equal(t, domain.ConnectionFailed, result.Status)
	assert.Contains(t, result.Message, "Is it running?")
}

func TestOllamaBackendModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer server.Close()

	_, err := NewOllamaBackend(time.Second).Complete(context.Background(), testIssue, "p",
		domain.LocalConfig{EndpointURL: server.URL, ModelName: "nope"})
	assert.Equal(t, domain.KindProviderResponseError, domain.KindOf(err))
}

func TestOllamaBackendPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"mistral:latest"},{"name":"llama3:8b"}]}`)
	}))
	defer server.Close()

	result := NewOllamaBackend(time.Second).Ping(context.Background(), domain.LocalConfig{EndpointURL: server.URL, ModelName: "mistral"})
	assert.Equal(t, domain.ConnectionConnected, result.Status)
	assert.Equal(t, []string{"mistral:latest", "llama3:8b"}, result.AvailableModels)
	assert.Equal(t, "Ollama connected (2 models available)", result.Message)
}

func TestRouterDispatches(t *testing.T) {
	grok := NewMockClient()
	ollama := &MockClient{Err: domain.NewError(domain.KindProviderUnreachable, "down")}
	r := NewRouter(map[domain.ProviderTag]Backend{
		domain.ProviderGrok:   grok,
		domain.ProviderOllama: ollama,
	})

	out, err := r.Generate(context.Background(), Request{Issue: testIssue, Config: domain.CloudConfig{Model: "m"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "# Test Plan: PROJ-123"))
	assert.Equal(t, 1, grok.Calls())

	_, err = r.Generate(context.Background(), Request{Issue: testIssue, Config: domain.LocalConfig{}})
	assert.Equal(t, domain.KindProviderUnreachable, domain.KindOf(err))
	assert.Equal(t, 1, ollama.Calls())

	_, err = r.Generate(context.Background(), Request{Issue: testIssue})
	assert.Equal(t, domain.KindConfigInvalid, domain.KindOf(err))
}

func TestRouterUnknownBackend(t *testing.T) {
	r := NewRouter(map[domain.ProviderTag]Backend{domain.ProviderGrok: NewMockClient()})
	_, err := r.Generate(context.Background(), Request{Issue: testIssue, Config: domain.LocalConfig{}})
	assert.Equal(t, domain.KindConfigInvalid, domain.KindOf(err))

	result := r.TestConnection(context.Background(), domain.LocalConfig{})
	assert.Equal(t, domain.ConnectionFailed, result.Status)
}

func TestMockClientHonorsContext(t *testing.T) {
	m := &MockClient{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Complete(ctx, testIssue, "p", domain.CloudConfig{})
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewGeneratorMockMode(t *testing.T) {
	r := NewGenerator(ModeMock, time.Second)
	b, ok := r.Backend(domain.ProviderOllama)
	require.True(t, ok)
	_, isMock := b.(*MockClient)
	assert.True(t, isMock)

	live := NewGenerator("", time.Second)
	b, ok = live.Backend(domain.ProviderGrok)
	require.True(t, ok)
	_, isGrok := b.(*GrokBackend)
	assert.True(t, isGrok)
}
