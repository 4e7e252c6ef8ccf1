package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"onboarding-backend/internal/shared/middleware"
	"onboarding-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupOnboardingRoutes(v1, c)
	}

	return router
}

// ========================================
// ONBOARDING ROUTES
// ========================================
func setupOnboardingRoutes(v1 *gin.RouterGroup, c *container.Container) {
	h := c.OnboardingHandler

	// Authorization: Bearer <upstream token> is optional here and only
	// required by flows that edit an existing account
	v1.POST("/onboarding/sessions", h.StartSession)

	session := v1.Group("/onboarding/session")
	session.Use(middleware.OnboardingSession(c.JWTManager))
	{
		session.GET("", h.GetSession)
		session.DELETE("", h.DiscardSession)
		session.PATCH("/fields", h.UpdateFields)
		session.POST("/picture", h.UploadPicture)
		session.POST("/next", h.Next)
		session.POST("/back", h.Back)
		session.POST("/submit", h.Submit)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		services := gin.H{}
		statusCode := http.StatusOK
		for name, check := range appCtx.HealthChecks() {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check(ctx)
			cancel()

			if err != nil {
				services[name] = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			services[name] = "ok"
		}
		health["services"] = services

		c.JSON(statusCode, health)
	}
}
