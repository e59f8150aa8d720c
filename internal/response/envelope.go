package response

import (
	"time"

	"github.com/labstack/echo/v4"
)

const (
	StatusSuccess         = "success"
	StatusError           = "error"
	StatusValidationError = "validation_error"
)

// 全APIの共通レスポンス
type Envelope[T any] struct {
	Data      T         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Errors    []string  `json:"errors"`
}

func Success[T any](data T, message string) Envelope[T] {
	if message == "" {
		message = "Success"
	}
	return Envelope[T]{
		Data:      data,
		Timestamp: time.Now().UTC(),
		Status:    StatusSuccess,
		Message:   message,
		Errors:    []string{},
	}
}

// dataはnull
func Error(message string, errs ...string) Envelope[any] {
	if errs == nil {
		errs = []string{}
	}
	return Envelope[any]{
		Timestamp: time.Now().UTC(),
		Status:    StatusError,
		Message:   message,
		Errors:    errs,
	}
}

func ValidationError(errs ...string) Envelope[any] {
	env := Error("Validation failed", errs...)
	env.Status = StatusValidationError
	return env
}

// middlewareからのエラー応答
func WriteError(c echo.Context, status int, message string, errs ...string) error {
	return c.JSON(status, Error(message, errs...))
}
