package middleware

import (
	"strings"

	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

// Context keys under which Auth stores the authenticated team member.
const (
	UserIDKey   = "user_id"
	UserNameKey = "user_name"
)

// TokenValidator resolves a member token to the team member it was issued for.
type TokenValidator interface {
	ValidateAccessToken(token string) (*services.Claims, error)
}

// Auth admits requests carrying a member token as "Authorization: Bearer
// <token>" and records the member's id and display name on the context.
// The sync socket cannot send headers from a browser and checks its token
// query parameter itself.
func Auth(tokens TokenValidator) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, reason := bearerToken(c.GetHeader("Authorization"))
		if reason != "" {
			c.Unauthorized(reason)
			return
		}

		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserNameKey, claims.Name)
		c.Next()
	}
}

func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}

// GetUserID returns the team member id set by Auth, 0 on unauthenticated
// routes.
func GetUserID(c *drift.Context) int64 {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetUserName returns the display name from the member token.
func GetUserName(c *drift.Context) string {
	if v, ok := c.Get(UserNameKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}
