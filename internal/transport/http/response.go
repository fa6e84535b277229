package http

import (
	"net/http"

	"async-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Code: string(domain.KindInvalidArgument), Error: msg})
}

// fail renders a classified error. data, when non-nil, travels with the error.
func fail(c *gin.Context, err error, data interface{}) {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(statusFor(kind), Body{Success: false, Data: data, Code: string(kind), Error: msg})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
