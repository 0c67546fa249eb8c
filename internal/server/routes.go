// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/assistant-hub/internal/handlers"
	appmw "codeberg.org/oliverandrich/assistant-hub/internal/middleware"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"github.com/labstack/echo/v4"
)

type routeDeps struct {
	health    *handlers.Handlers
	auth      *handlers.AuthHandlers
	google    *handlers.FederatedHandlers
	authn     appmw.Authenticator
	cookies   *session.Cookies
	rateLimit float64
	rateBurst int
}

func setupRoutes(e *echo.Echo, d routeDeps) {
	e.GET("/health", d.health.Health)

	authn := appmw.Authenticate(d.authn, d.cookies)
	admin := appmw.RequireRole(models.RoleAdmin)
	limited := appmw.RateLimit(d.rateLimit, d.rateBurst)

	g := e.Group("/auth")

	// Public
	g.POST("/signup", d.auth.SignUp, limited)
	g.POST("/signin", d.auth.SignIn, limited)
	g.POST("/verify-email/:code", d.auth.VerifyEmail, limited)
	g.POST("/resend-verification", d.auth.ResendVerification, limited)
	g.POST("/forgot-password", d.auth.ForgotPassword, limited)
	g.POST("/reset-password/:token", d.auth.ResetPassword, limited)
	g.GET("/validate-invitation/:token", d.auth.ValidateInvitation, limited)
	g.POST("/accept-invitation/:token", d.auth.AcceptInvitation, limited)
	g.POST("/refresh", d.auth.Refresh)
	g.POST("/logout", d.auth.Logout)

	// Federated sign-in
	g.GET("/google", d.google.Start)
	g.GET("/google/callback", d.google.Callback)

	// Authenticated
	g.GET("/me", d.auth.Me, authn)

	// Admin
	g.POST("/invite-user", d.auth.InviteUser, authn, admin)
	g.GET("/teams", d.auth.Teams, authn, admin)
	g.DELETE("/delete-user/:id", d.auth.DeleteUser, authn, admin)
	g.PUT("/update-role/:id", d.auth.UpdateRole, authn, admin)
}
