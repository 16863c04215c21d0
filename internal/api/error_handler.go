package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mautops/permit-gin/internal/service"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				HandleServiceError(c, err.Err)
			}
		}
	}
}

// HandleServiceError 将 service 层错误映射为 HTTP 响应
func HandleServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		Error(c, http.StatusBadRequest, "validation failed", validationErr.Error())
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, "resource not found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		Error(c, http.StatusForbidden, "access denied", err.Error())
	case errors.Is(err, service.ErrConflict):
		Error(c, http.StatusConflict, "conflict", err.Error())
	default:
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}
