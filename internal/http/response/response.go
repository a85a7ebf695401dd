package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondDomainError maps domain sentinels onto the HTTP surface. Anything
// outside the taxonomy is a 500 with a generic code.
func RespondDomainError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		RespondError(c, http.StatusUnsupportedMediaType, "unsupported_format", err)
	case errors.Is(err, domain.ErrExtraction):
		RespondError(c, http.StatusUnprocessableEntity, "extraction_failed", err)
	case errors.Is(err, domain.ErrIndexUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "index_unavailable", err)
	case errors.Is(err, domain.ErrInvalidStateTransition):
		RespondError(c, http.StatusConflict, "invalid_state_transition", err)
	case errors.Is(err, domain.ErrAlreadyGraded):
		RespondError(c, http.StatusConflict, "already_graded", err)
	case errors.Is(err, domain.ErrUnauthorized):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, domain.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, domain.ErrValidation):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
