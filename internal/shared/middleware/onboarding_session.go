package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"onboarding-backend/internal/shared/response"
	"onboarding-backend/pkg/jwt"
)

const (
	// SessionTokenHeader carries the token issued by POST /onboarding/sessions
	SessionTokenHeader = "X-Onboarding-Token"

	ContextSessionID = "session_id"
	ContextFlow      = "flow"
)

// OnboardingSession resolves the wizard session from X-Onboarding-Token
func OnboardingSession(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(SessionTokenHeader))
		if token == "" {
			response.ErrorResponse(c, http.StatusUnauthorized, "SESSION_TOKEN_MISSING", "missing "+SessionTokenHeader+" header")
			c.Abort()
			return
		}

		claims, err := tokens.ValidateSessionToken(token)
		if err != nil {
			response.ErrorResponse(c, http.StatusUnauthorized, "SESSION_TOKEN_INVALID", "invalid onboarding session token")
			c.Abort()
			return
		}

		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextFlow, claims.Flow)
		c.Next()
	}
}

// BearerToken extracts "Bearer <token>" from Authorization, or "" when absent
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
