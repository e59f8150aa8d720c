package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"storefront/internal/response"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// status毎の既定メッセージ
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Access forbidden",
	http.StatusNotFound:            "Resource not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Validation failed",
	http.StatusTooManyRequests:     "Too many requests",
	http.StatusInternalServerError: "Internal server error",
	http.StatusBadGateway:          "Bad gateway",
	http.StatusServiceUnavailable:  "Service unavailable",
}

func statusMessage(code int) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return "An error occurred"
}

// usecaseのエラーはここでエンベロープにする。
// 想定外のエラーはそのまま返してHTTPErrorHandlerに任せる（ログと500）
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	ue, ok := usecase.AsError(err)
	if !ok || ue.Kind == usecase.KindUnexpected {
		return err
	}
	return c.JSON(ue.HTTPStatus(), envelopeFor(ue))
}

func envelopeFor(ue *usecase.Error) response.Envelope[any] {
	if ue.Kind == usecase.KindValidation {
		return response.ValidationError(ue.Errors...)
	}
	return response.Error(ue.Message, ue.Errors...)
}

func validationFailed(c echo.Context, details ...string) error {
	return c.JSON(http.StatusUnprocessableEntity, response.ValidationError(details...))
}

// echo全体のエラーハンドラ。どの経路のエラーも同じエンベロープで返す
func NewHTTPErrorHandler(debug bool, log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		//audit/metricsで描画済み
		if c.Response().Committed {
			return
		}

		code, env := errorEnvelope(err, debug)
		if code >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", code),
				slog.Any("error", err),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, env)
		}
		if writeErr != nil {
			log.Error("write error response", slog.Any("error", writeErr))
		}
	}
}

func errorEnvelope(err error, debug bool) (int, response.Envelope[any]) {
	if ue, ok := usecase.AsError(err); ok && ue.Kind != usecase.KindUnexpected {
		return ue.HTTPStatus(), envelopeFor(ue)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := he.Code
		msg := statusMessage(code)
		detail := msg
		if he.Message != nil {
			detail = fmt.Sprint(he.Message)
		}
		if code == http.StatusUnprocessableEntity {
			return code, response.ValidationError(detail)
		}
		return code, response.Error(msg, detail)
	}

	details := []string{"An unexpected error occurred"}
	if debug {
		details = append(details, err.Error())
	}
	return http.StatusInternalServerError, response.Error(statusMessage(http.StatusInternalServerError), details...)
}
