package routes

import (
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"strconv"

	"github.com/labstack/echo/v4"
)

func intParam(c echo.Context, name string) (int, apierror.ErrorResponse) {
	raw := c.Param(name)
	if raw == "" {
		return 0, apierror.NewMissingParamError(name)
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.NewInvalidParamTypeError(name, "int32")
	}
	return id, nil
}

func tokenSub(c echo.Context) (string, apierror.ErrorResponse) {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return "", apierror.InvalidAuthTokenError
	}
	return data.Sub, nil
}
