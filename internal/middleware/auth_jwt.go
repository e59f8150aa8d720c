package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/response"
	"storefront/internal/security"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // int64
	CtxUserRoleKey = "user_role" // string
	CtxClaimsKey   = "claims"    // *security.Claims
)

// 認証なしで通すパス。"/"だけは完全一致、他は前方一致
var DefaultAuthExemptions = []string{
	"/auth/",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/favicon.ico",
	"/health",
	"/metrics",
	"/",
}

// Bearer tokenを検証してidentityをcontextに入れる
type Authenticator struct {
	tokens security.TokenDecoder
	exempt []string
	log    *slog.Logger
}

func NewAuthenticator(tokens security.TokenDecoder, exempt []string, log *slog.Logger) *Authenticator {
	if exempt == nil {
		exempt = DefaultAuthExemptions
	}
	return &Authenticator{tokens: tokens, exempt: exempt, log: log}
}

func (a *Authenticator) IsExempt(path string) bool {
	return matchPath(a.exempt, path)
}

// 全体に掛ける。除外パスはidentityなしで通す
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a.IsExempt(c.Request().URL.Path) {
				return next(c)
			}
			return a.authenticate(c, next)
		}
	}
}

// ルート単位で必ず認証する（除外prefix配下の/auth/meなど）
func (a *Authenticator) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(CtxUserIDKey).(int64); ok {
				return next(c)
			}
			return a.authenticate(c, next)
		}
	}
}

func (a *Authenticator) authenticate(c echo.Context, next echo.HandlerFunc) error {
	//Authorizationヘッダを取得
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if authz == "" {
		return response.WriteError(c, http.StatusUnauthorized, "Authentication required", "Authorization header missing")
	}

	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return response.WriteError(c, http.StatusUnauthorized, "Invalid authorization format",
			"Invalid authorization header format. Use 'Bearer <token>'")
	}

	claims, err := a.tokens.Decode(strings.TrimSpace(parts[1]))
	switch {
	case err == nil:
	case errors.Is(err, security.ErrExpiredCredential):
		return response.WriteError(c, http.StatusUnauthorized, "Token expired", "Token has expired, please login again")
	case errors.Is(err, security.ErrInvalidCredential), errors.Is(err, security.ErrMalformedCredential):
		return response.WriteError(c, http.StatusUnauthorized, "Invalid token", "Token is invalid or malformed")
	default:
		a.log.Error("token validation failed", slog.Any("error", err))
		return response.WriteError(c, http.StatusInternalServerError, "Authentication failed", "Token validation failed", err.Error())
	}

	//refresh tokenではAPIを呼べない
	if claims.TokenUse != security.TokenUseAccess {
		return response.WriteError(c, http.StatusUnauthorized, "Invalid token", "Token is invalid or malformed")
	}

	//contextへ保存
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxUserRoleKey, claims.Role)
	c.Set(CtxClaimsKey, claims)

	return next(c)
}

func matchPath(patterns []string, path string) bool {
	for _, p := range patterns {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// handler用
func UserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(CtxUserIDKey).(int64)
	return id, ok && id > 0
}
