package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/response"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payment/process", h.process)
	e.GET("/payment/:id", h.detail)
	e.GET("/payment/:id/status", h.status)
}

// 拒否（FAILED）も200で返す。messageだけ変える
func (h *PaymentHandler) process(c echo.Context) error {
	var in usecase.ProcessPaymentInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	out, err := h.uc.Process(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	msg := "Payment failed - transaction declined"
	if out.Status == model.PaymentStatusCaptured {
		msg = "Payment processed successfully"
	}
	return c.JSON(http.StatusOK, response.Success(out, msg))
}

func (h *PaymentHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return validationFailed(c, "payment_id: must be an integer")
	}

	out, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Payment details retrieved successfully"))
}

func (h *PaymentHandler) status(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return validationFailed(c, "payment_id: must be an integer")
	}

	out, err := h.uc.Status(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Payment status retrieved successfully"))
}
