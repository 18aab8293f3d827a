package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/middleware"
)

// statusFor maps an error to its HTTP status and API error code.
func statusFor(err error) (int, string) {
	var (
		validationErrs validator.ValidationErrors
		domainErr      *domain.ValidationError
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &validationErrs), errors.As(err, &domainErr):
		return http.StatusBadRequest, domain.ErrValidation
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFoundCode
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrInternalServer
	default:
		return http.StatusInternalServerError, domain.ErrCalculation
	}
}

// describe renders an error for the details field. Validator errors are listed per
// field by their JSON name.
func describe(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fe.Namespace()+" is "+fe.Tag())
		}
		return strings.Join(fields, "; ")
	}
	return err.Error()
}

var messages = map[string]string{
	domain.ErrValidation:     "Request validation failed",
	domain.ErrInvalidInput:   "Malformed request body",
	domain.ErrNotFoundCode:   "Resource not found",
	domain.ErrInternalServer: "Internal server error",
	domain.ErrCalculation:    "Risk calculation failed",
	domain.ErrDatabaseError:  "Audit store unavailable",
	domain.ErrExternalAPI:    "External service unavailable",
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	s.respondCode(c, status, code, err)
}

func (s *Server) respondCode(c *gin.Context, status int, code string, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	entry := s.logger.WithFields(logrus.Fields{
		"correlation_id": requestID,
		"path":           c.Request.URL.Path,
		"status":         status,
		"code":           code,
		"error":          err.Error(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, domain.NewAPIError(code, messages[code], describe(err), requestID))
}
