// Package http provides the HTTP server of the test plan agent.
package http

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/service"
	v1 "github.com/tpcreator/tpagent/internal/transport/http/v1"
	"github.com/tpcreator/tpagent/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. It serves the settings
// and workflow API plus the websocket history feed. Request logs are written
// at the debug and info levels only.
func NewServer(svc *service.Service, stream *ws.Server, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info":
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if stream != nil {
		e.GET("/api/history/stream", stream.HandleHistoryStream)
	}

	return e
}
