// Package v1 provides the HTTP handlers of the test plan API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/service"
)

// APIVersion is reported by the root banner.
const APIVersion = "1.0.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/api/health", h.Health)

	// Settings API
	e.POST("/api/config/jira", h.SaveJiraConfig)
	e.GET("/api/config/jira", h.GetJiraConfig)
	e.POST("/api/config/test-jira", h.TestJiraConnection)
	e.POST("/api/config/llm", h.SaveLLMConfig)
	e.GET("/api/config/llm", h.GetLLMConfig)
	e.POST("/api/config/test-llm", h.TestLLMConnection)
	e.POST("/api/config/template", h.SaveTemplateConfig)
	e.GET("/api/config/template", h.GetTemplateConfig)

	// Workflow API
	e.POST("/api/jira/issue/:key", h.FetchIssue)
	e.POST("/api/generate/test-plan", h.GenerateTestPlan)
	e.GET("/api/export/:id/:format", h.Export)
	e.GET("/api/history", h.ListHistory)
}

// Root returns the service banner.
// GET /
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message":     "TP Creator - Test Plan Agent",
		"api_version": APIVersion,
	})
}

// Health returns health status.
// GET /api/health
func (h *Handler) Health(c echo.Context) error {
	health := h.service.Health(c.Request().Context())
	status := http.StatusOK
	if health["status"] != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, health)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindIssueNotFound, domain.KindSessionNotFound:
		return http.StatusNotFound
	case domain.KindTrackerAuthError, domain.KindProviderAuthError:
		return http.StatusUnauthorized
	case domain.KindSessionNotReady:
		return http.StatusConflict
	case domain.KindConfigInvalid:
		return http.StatusBadRequest
	case domain.KindTrackerUnreachable, domain.KindProviderUnreachable, domain.KindProviderResponseError:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorJSON writes err as {"error": {"kind", "message"}}.
func errorJSON(c echo.Context, err error) error {
	info := domain.InfoOf(err)
	return c.JSON(StatusOf(info.Kind), domain.ErrorResponse{Error: *info})
}

func badRequest(c echo.Context, message string) error {
	return errorJSON(c, domain.NewError(domain.KindConfigInvalid, message))
}
