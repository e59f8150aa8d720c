package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// JSONボディを読む。壊れたJSONは422
func bindBody(c echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		msg := "invalid request body"
		if he, ok := err.(*echo.HTTPError); ok && he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return validationFailed(c, "body: "+msg)
	}
	return nil
}

// パスの数値IDを読む
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// page/sizeのクエリ。未指定は0（usecase側で既定値にする）
func pagingQuery(c echo.Context) (page int, size int, problems []string) {
	if err := echo.QueryParamsBinder(c).Int("page", &page).BindError(); err != nil {
		problems = append(problems, "page: must be an integer")
	}
	if err := echo.QueryParamsBinder(c).Int("size", &size).BindError(); err != nil {
		problems = append(problems, "size: must be an integer")
	}
	return page, size, problems
}

func trimmedQuery(c echo.Context, name string) string {
	return strings.TrimSpace(c.QueryParam(name))
}
