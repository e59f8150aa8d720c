package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	//入力不正
	KindValidation   ErrorKind = "ValidationFailure"
	KindNotFound     ErrorKind = "NotFound"
	KindUnauthorized ErrorKind = "Unauthorized"
	KindForbidden    ErrorKind = "Forbidden"
	//重複登録・処理済み
	KindConflict   ErrorKind = "Conflict"
	KindUnexpected ErrorKind = "Unexpected"
)

// handlerがそのままエンベロープにできる形のエラー
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Errors  []string
	//原因（ログ用）
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Statusが無ければKindから決める
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string, details ...string) error {
	return &Error{Kind: KindValidation, Message: message, Errors: details}
}

func NotFound(message string, details ...string) error {
	return &Error{Kind: KindNotFound, Message: message, Errors: details}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// statusが0なら409
func Conflict(status int, message string, details ...string) error {
	return &Error{Kind: KindConflict, Status: status, Message: message, Errors: details}
}

func Unexpected(err error) error {
	return &Error{Kind: KindUnexpected, Message: "Internal server error", Err: err}
}

func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}
