package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/registry"
)

// FetchIssue fetches one Jira issue.
// POST /api/jira/issue/:key
func (h *Handler) FetchIssue(c echo.Context) error {
	issue, err := h.service.FetchIssue(c.Request().Context(), c.Param("key"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, issue)
}

// GenerateTestPlan runs one generation session.
// POST /api/generate/test-plan
func (h *Handler) GenerateTestPlan(c echo.Context) error {
	var req domain.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.service.GenerateFromRequest(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Export renders a completed session.
// GET /api/export/:id/:format
func (h *Handler) Export(c echo.Context) error {
	art, err := h.service.Export(c.Request().Context(), c.Param("id"), c.Param("format"))
	if err != nil {
		return errorJSON(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+art.Filename+`"`)
	return c.Blob(http.StatusOK, art.ContentType, art.Data)
}

// ListHistory lists generation history.
// GET /api/history?order=newest&include_failed=true
func (h *Handler) ListHistory(c echo.Context) error {
	opts := registry.ListOptions{
		NewestFirst:   strings.EqualFold(c.QueryParam("order"), "newest"),
		IncludeFailed: c.QueryParam("include_failed") == "true",
	}
	return c.JSON(http.StatusOK, h.service.History(opts))
}
