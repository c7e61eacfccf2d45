// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse = dto.ErrorResponse

// ErrorMiddleware handles panic recovery.
type ErrorMiddleware struct{}

// NewErrorMiddleware creates a new ErrorMiddleware.
func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{}
}

// Recovery returns a gin middleware that turns a panic into a 500.
func (m *ErrorMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("request_id", GetRequestID(c)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Code:    domainerrors.ErrCodeInternal,
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// HandleError writes err as an error response. Errors that are not domain
// errors become a logged 500.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	domainErr, ok := domainerrors.GetDomainError(err)
	if !ok {
		domainErr = domainerrors.NewInternalError("internal server error", err)
	}
	abort(c, domainErr, err)
}

// HandleServiceError maps service sentinels to a response. subject names the
// resource the request was about and ends up in the error details.
func HandleServiceError(c *gin.Context, err error, subject string) {
	if err == nil {
		return
	}
	abort(c, domainerrors.FromSentinel(err, subject), err)
}

func abort(c *gin.Context, domainErr *domainerrors.DomainError, cause error) {
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error().
			Err(cause).
			Str("request_id", GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(domainErr.HTTPStatus, ErrorResponse{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
	})
}

// NotFound answers unknown routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    domainerrors.ErrCodeNotFound,
			Message: "route not found",
			Details: c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}
