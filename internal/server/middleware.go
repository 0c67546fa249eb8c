// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"net/http"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	appmw "codeberg.org/oliverandrich/assistant-hub/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", max(cfg.Server.MaxBodySize, 1))))
	e.Use(corsMiddleware(cfg))
	e.Use(appmw.Locale())
}

// corsMiddleware lets the frontend origin call the API with cookies.
func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	origins := []string{cfg.Server.FrontendURL}
	if cfg.Server.BaseURL != cfg.Server.FrontendURL {
		origins = append(origins, cfg.Server.BaseURL)
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderAcceptEncoding, "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
