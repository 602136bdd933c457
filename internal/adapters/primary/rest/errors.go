package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/auth"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// statusError force un code HTTP précis (binding, login...).
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, err: err}
}

func badRequestf(format string, args ...any) error {
	return badRequest(fmt.Errorf(format, args...))
}

// errorHandler est le SEUL endroit qui écrit les réponses d'erreur.
// Les handlers font c.Error(err) puis return.
func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := statusFor(err)
		msg := err.Error()

		if status >= http.StatusInternalServerError {
			slog.ErrorContext(c.Request.Context(), "❌ Request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			msg = "internal server error"
		}
		c.AbortWithStatusJSON(status, gin.H{"message": msg})
	}
}

func statusFor(err error) int {
	var se *statusError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrPostNotFound):
		return http.StatusNotFound
	case domain.IsConflict(err), domain.IsValidation(err), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// recovery remplace gin.Recovery pour logger la stack en slog.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "💥 Panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
			}
		}()
		c.Next()
	}
}
