package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tpcreator/tpagent/internal/domain"
)

// notConfigured is returned by the GET settings routes when nothing is
// stored yet.
var notConfigured = map[string]string{"status": "not_configured"}

// JiraConfigRequest is the request to save Jira settings.
type JiraConfigRequest struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// SaveJiraConfig stores the Jira settings.
// POST /api/config/jira
func (h *Handler) SaveJiraConfig(c echo.Context) error {
	var req JiraConfigRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	saved, err := h.service.SaveJiraSettings(c.Request().Context(), domain.JiraSettings{
		Domain:   req.Domain,
		Email:    req.Email,
		APIToken: req.APIToken,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "saved",
		"message": "Jira configuration saved",
		"config":  saved,
	})
}

// GetJiraConfig returns the Jira settings without the token.
// GET /api/config/jira
func (h *Handler) GetJiraConfig(c echo.Context) error {
	settings, err := h.service.GetJiraSettings(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if settings == nil {
		return c.JSON(http.StatusOK, notConfigured)
	}
	return c.JSON(http.StatusOK, settings)
}

// TestJiraConnection tests the stored Jira settings.
// POST /api/config/test-jira
func (h *Handler) TestJiraConnection(c echo.Context) error {
	result, err := h.service.TestJiraConnection(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// LLMConfigRequest is the request to save provider settings.
type LLMConfigRequest struct {
	Provider        string   `json:"provider"`
	GrokAPIKey      string   `json:"grok_api_key"`
	GrokModel       string   `json:"grok_model"`
	GrokTemperature *float64 `json:"grok_temperature"`
	GrokMaxTokens   *int     `json:"grok_max_tokens"`
	GrokBaseURL     string   `json:"grok_base_url"`
	OllamaURL       string   `json:"ollama_url"`
	OllamaModel     string   `json:"ollama_model"`
}

// SaveLLMConfig stores the provider settings.
// POST /api/config/llm
func (h *Handler) SaveLLMConfig(c echo.Context) error {
	var req LLMConfigRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	saved, err := h.service.SaveLLMSettings(c.Request().Context(), domain.LLMSettings{
		Provider:        domain.ProviderTag(req.Provider),
		GrokAPIKey:      req.GrokAPIKey,
		GrokModel:       req.GrokModel,
		GrokTemperature: req.GrokTemperature,
		GrokMaxTokens:   req.GrokMaxTokens,
		GrokBaseURL:     req.GrokBaseURL,
		OllamaURL:       req.OllamaURL,
		OllamaModel:     req.OllamaModel,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "saved",
		"message": "LLM configuration saved (" + string(saved.Provider) + ")",
		"config":  saved,
	})
}

// GetLLMConfig returns the provider settings without the API key.
// GET /api/config/llm
func (h *Handler) GetLLMConfig(c echo.Context) error {
	settings, err := h.service.GetLLMSettings(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if settings == nil {
		return c.JSON(http.StatusOK, notConfigured)
	}
	return c.JSON(http.StatusOK, settings)
}

// TestLLMRequest optionally names the provider to test.
type TestLLMRequest struct {
	Provider string `json:"provider"`
}

// TestLLMConnection tests the selected provider, or the stored default.
// POST /api/config/test-llm
func (h *Handler) TestLLMConnection(c echo.Context) error {
	var req TestLLMRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	if p := c.QueryParam("provider"); p != "" {
		req.Provider = p
	}

	result, err := h.service.TestLLMConnection(c.Request().Context(), req.Provider)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// TemplateConfigRequest is the request to save the template path.
type TemplateConfigRequest struct {
	FilePath string `json:"file_path"`
}

// SaveTemplateConfig validates and stores the template path.
// POST /api/config/template
func (h *Handler) SaveTemplateConfig(c echo.Context) error {
	var req TemplateConfigRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	saved, validation, err := h.service.SaveTemplate(c.Request().Context(), req.FilePath)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "saved",
		"validation": validation,
		"config":     saved,
	})
}

// GetTemplateConfig returns the template settings.
// GET /api/config/template
func (h *Handler) GetTemplateConfig(c echo.Context) error {
	settings, err := h.service.GetTemplateSettings(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if settings == nil {
		return c.JSON(http.StatusOK, notConfigured)
	}
	return c.JSON(http.StatusOK, settings)
}
