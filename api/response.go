package api

import (
	"errors"
	"net/http"

	"github.com/defistate/ammquote-go/quoter"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// statusFor maps a quoter error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, quoter.ErrNoState):
		return http.StatusServiceUnavailable
	case errors.Is(err, quoter.ErrPoolNotFound),
		errors.Is(err, quoter.ErrNoRoute),
		errors.Is(err, quoter.ErrExactOutputMultiHop),
		errors.Is(err, quoter.ErrNoOracle):
		return http.StatusNotFound
	case quoter.IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) respond(c *gin.Context, data any, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("Request failed", "path", c.FullPath(), "error", err)
		}
		fail(c, status, err.Error())
		return
	}
	success(c, data)
}
