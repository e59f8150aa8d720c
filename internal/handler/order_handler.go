package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/response"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /orders のAPI（すべてログイン必須）
type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/orders/initiate", h.initiate)
	e.GET("/orders", h.list)
	e.GET("/orders/", h.list)
	e.GET("/orders/:id", h.detail)
}

// 注文を作って決済URLを返す
func (h *OrderHandler) initiate(c echo.Context) error {
	userID, _ := middleware.UserID(c)

	var in usecase.InitiateOrderInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	out, err := h.uc.Initiate(c.Request().Context(), userID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Order initiated successfully"))
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, _ := middleware.UserID(c)

	page, size, problems := pagingQuery(c)
	if len(problems) > 0 {
		return validationFailed(c, problems...)
	}

	out, err := h.uc.ListMine(c.Request().Context(), userID, page, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Orders retrieved successfully"))
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, _ := middleware.UserID(c)

	orderID, ok := pathID(c, "id")
	if !ok {
		return validationFailed(c, "order_id: must be an integer")
	}

	out, err := h.uc.GetMine(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Order retrieved successfully"))
}
