package middleware

import (
	"net/http"

	"storefront/internal/response"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleが許可リストにあるか確認する。
// Authenticatorの後に掛ける
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return response.WriteError(c, http.StatusUnauthorized, "Authentication required")
			}

			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return response.WriteError(c, http.StatusForbidden, "Access forbidden", "Insufficient permissions")
		}
	}
}
