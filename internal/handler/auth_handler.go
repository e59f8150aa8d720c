package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/response"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /auth 配下
type AuthHandler struct {
	uc *usecase.AuthUsecase
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// /auth/は認証除外なので/auth/meだけRequireを付ける
func (h *AuthHandler) RegisterRoutes(e *echo.Echo, auth *middleware.Authenticator) {
	e.POST("/auth/register", h.register)
	e.POST("/auth/login", h.login)
	e.POST("/auth/refresh/:refresh_token", h.refresh)
	e.GET("/auth/me", h.me, auth.Require())
}

func (h *AuthHandler) register(c echo.Context) error {
	var in usecase.RegisterInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	out, err := h.uc.Register(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "User registered successfully"))
}

func (h *AuthHandler) login(c echo.Context) error {
	var in usecase.LoginInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	out, err := h.uc.Login(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Login successful"))
}

// refresh tokenはパスで受け取る
func (h *AuthHandler) refresh(c echo.Context) error {
	out, err := h.uc.Refresh(c.Request().Context(), c.Param("refresh_token"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Token refreshed successfully"))
}

func (h *AuthHandler) me(c echo.Context) error {
	userID, _ := middleware.UserID(c)

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "User profile retrieved successfully"))
}
