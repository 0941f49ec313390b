package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with statusCode as both HTTP and body status.
func DataResponse(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusCreated, data)
}

func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse renders an AppError with its status, anything else as 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
