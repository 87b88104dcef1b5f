package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tpcreator/tpagent/internal/adapter/jira"
	"github.com/tpcreator/tpagent/internal/adapter/llm"
	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/registry"
	"github.com/tpcreator/tpagent/internal/repository"
	"github.com/tpcreator/tpagent/internal/secrets"
	"github.com/tpcreator/tpagent/internal/service"
	"github.com/tpcreator/tpagent/policy"
	"github.com/tpcreator/tpagent/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service, repository.Store) {
	t.Helper()
	cfg := &config.Config{
		PublicBaseURL:      "http://localhost:8000",
		GenerationTimeout:  5 * time.Second,
		LLMTestTimeout:     time.Second,
		FailedHistoryLimit: 100,
	}
	db := helpers.NewTestSQLiteStore(t)
	sec := secrets.NewMemory()
	if err := sec.Set(secrets.GrokAPIKey, "xai-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	policyEngine, err := policy.NewDefaultEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	mock := llm.NewMockClient()
	gen := llm.NewRouter(map[domain.ProviderTag]llm.Backend{
		domain.ProviderGrok:   mock,
		domain.ProviderOllama: mock,
	})
	svc := service.New(db, sec, gen, registry.New(db, cfg.FailedHistoryLimit), cfg, policyEngine)
	svc.SetIssueSource(jira.NewMockSource(jira.DemoIssue()))
	return NewHandler(svc), svc, db
}

func doRequest(t *testing.T, method, target, body string, handle func(echo.Context) error, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := handle(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorInfo {
	t.Helper()
	var resp domain.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestStatusOf(t *testing.T) {
	cases := map[domain.ErrorKind]int{
		domain.KindIssueNotFound:         http.StatusNotFound,
		domain.KindSessionNotFound:       http.StatusNotFound,
		domain.KindTrackerAuthError:      http.StatusUnauthorized,
		domain.KindProviderAuthError:     http.StatusUnauthorized,
		domain.KindSessionNotReady:       http.StatusConflict,
		domain.KindConfigInvalid:         http.StatusBadRequest,
		domain.KindTrackerUnreachable:    http.StatusBadGateway,
		domain.KindProviderUnreachable:   http.StatusBadGateway,
		domain.KindProviderResponseError: http.StatusBadGateway,
		domain.KindTimeout:               http.StatusGatewayTimeout,
		domain.KindInternal:              http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusOf(kind); got != want {
			t.Fatalf("StatusOf(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestGenerateAndExport(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/generate/test-plan",
		`{"jira_issue_id":"proj-123","provider":"grok"}`, h.GenerateTestPlan)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.ID == "" || resp.JiraIssueID != "PROJ-123" || resp.Format != "markdown" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Exports.MarkdownURL != "http://localhost:8000/api/export/"+resp.ID+"/md" {
		t.Fatalf("unexpected export url: %s", resp.Exports.MarkdownURL)
	}

	rec = doRequest(t, http.MethodGet, "/api/export/"+resp.ID+"/md", "", h.Export, "id", resp.ID, "format", "md")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != resp.Content {
		t.Fatalf("exported markdown differs from generated content")
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != `attachment; filename="test_plan_PROJ-123.md"` {
		t.Fatalf("unexpected content disposition: %s", got)
	}

	rec = doRequest(t, http.MethodGet, "/api/export/"+resp.ID+"/pdf", "", h.Export, "id", resp.ID, "format", "pdf")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Fatalf("unexpected pdf response: %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
}

func TestExportErrors(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodGet, "/api/export/nope/pdf", "", h.Export, "id", "nope", "format", "pdf")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if info := decodeError(t, rec); info.Kind != domain.KindSessionNotFound {
		t.Fatalf("unexpected kind: %s", info.Kind)
	}

	rec = doRequest(t, http.MethodGet, "/api/export/nope/rtf", "", h.Export, "id", "nope", "format", "rtf")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFetchIssue(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/jira/issue/proj-123", "", h.FetchIssue, "key", "proj-123")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var issue domain.IssueRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &issue); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if issue.Key != "PROJ-123" || issue.Summary != "Fix login bug" {
		t.Fatalf("unexpected issue: %+v", issue)
	}

	rec = doRequest(t, http.MethodPost, "/api/jira/issue/PROJ-999", "", h.FetchIssue, "key", "PROJ-999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if info := decodeError(t, rec); info.Kind != domain.KindIssueNotFound {
		t.Fatalf("unexpected kind: %s", info.Kind)
	}
}

func TestGenerateValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/generate/test-plan", `{"provider":"grok"}`, h.GenerateTestPlan)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, http.MethodPost, "/api/generate/test-plan",
		`{"jira_details":{"key":"PROJ-1","summary":"x"},"provider":"grok","temperature":5}`, h.GenerateTestPlan)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if info := decodeError(t, rec); info.Kind != domain.KindConfigInvalid {
		t.Fatalf("unexpected kind: %s", info.Kind)
	}

	rec = doRequest(t, http.MethodPost, "/api/generate/test-plan", `{not json`, h.GenerateTestPlan)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListHistory(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	ctx := context.Background()

	first, err := svc.Generate(ctx, domain.IssueRecord{Key: "A-1", Summary: "first"}, "grok", domain.ProviderOverrides{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := svc.Generate(ctx, domain.IssueRecord{Key: "A-2", Summary: "second"}, "ollama", domain.ProviderOverrides{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rec := doRequest(t, http.MethodGet, "/api/history?order=newest", "", h.ListHistory)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Total != 2 || resp.Entries[0].ID != second.ID || resp.Entries[1].ID != first.ID {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestJiraConfigRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodGet, "/api/config/jira", "", h.GetJiraConfig)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("not_configured")) {
		t.Fatalf("unexpected empty config response: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, http.MethodPost, "/api/config/jira",
		`{"domain":"acme.atlassian.net","email":"qa@acme.io","api_token":"secret-token"}`, h.SaveJiraConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, http.MethodGet, "/api/config/jira", "", h.GetJiraConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret-token")) {
		t.Fatalf("token leaked: %s", rec.Body.String())
	}
	var got domain.JiraSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Domain != "acme.atlassian.net" || got.ConnectionStatus != domain.ConnectionUntested {
		t.Fatalf("unexpected settings: %+v", got)
	}

	rec = doRequest(t, http.MethodPost, "/api/config/jira", `{"domain":""}`, h.SaveJiraConfig)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLLMConfigAndConnection(t *testing.T) {
	h, _, db := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/config/llm",
		`{"provider":"grok","grok_temperature":9}`, h.SaveLLMConfig)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, http.MethodPost, "/api/config/llm",
		`{"provider":"ollama","ollama_model":"llama3"}`, h.SaveLLMConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, http.MethodPost, "/api/config/test-llm", "", h.TestLLMConnection)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.ConnectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if result.Status != domain.ConnectionConnected || result.Provider != domain.ProviderOllama {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, err := db.GetLLMSettings(context.Background())
	if err != nil {
		t.Fatalf("GetLLMSettings failed: %v", err)
	}
	if stored.ConnectionStatus != domain.ConnectionConnected || stored.LastTestedAt == nil {
		t.Fatalf("connection status not recorded: %+v", stored)
	}
}

func TestTemplateConfig(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/config/template", `{"file_path":"/does/not/exist.md"}`, h.SaveTemplateConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Validation struct {
			Status string `json:"status"`
		} `json:"validation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Validation.Status != "failed" {
		t.Fatalf("expected failed validation, got %q", resp.Validation.Status)
	}

	rec = doRequest(t, http.MethodPost, "/api/config/template", `{"file_path":""}`, h.SaveTemplateConfig)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRootAndHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, http.MethodGet, "/", "", h.Root)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(APIVersion)) {
		t.Fatalf("unexpected root response: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, http.MethodGet, "/api/health", "", h.Health)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"healthy"`)) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSaveLLMConfigExplicitZeros(t *testing.T) {
	h, _, db := newTestHandler(t)

	rec := doRequest(t, http.MethodPost, "/api/config/llm",
		`{"provider":"grok","grok_temperature":0}`, h.SaveLLMConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := db.GetLLMSettings(context.Background())
	if err != nil {
		t.Fatalf("GetLLMSettings failed: %v", err)
	}
	if stored.GrokTemperature == nil || *stored.GrokTemperature != 0 {
		t.Fatalf("explicit zero temperature not kept: %+v", stored.GrokTemperature)
	}

	rec = doRequest(t, http.MethodPost, "/api/config/llm",
		`{"provider":"grok","grok_max_tokens":0}`, h.SaveLLMConfig)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
