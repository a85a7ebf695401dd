package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
)

func respond(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondDomainError(c, err)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestDomainErrorHonorsAPIError(t *testing.T) {
	t.Parallel()

	status, env := respond(t, apierr.BadRequest("invalid_job_id", errors.New("not a uuid")))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_job_id", env.Error.Code)
	assert.Equal(t, "not a uuid", env.Error.Message)

	// Wrapped apierr values are still unwrapped ahead of the sentinel table.
	wrapped := fmt.Errorf("handling request: %w", apierr.Conflict("not_cancelable", nil))
	status, env = respond(t, wrapped)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_cancelable", env.Error.Code)
}

func TestDomainErrorSentinelTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
		{domain.ErrExtraction, http.StatusUnprocessableEntity, "extraction_failed"},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"},
		{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
		{domain.ErrAlreadyGraded, http.StatusConflict, "already_graded"},
		{domain.ErrUnauthorized, http.StatusForbidden, "forbidden"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, env := respond(t, fmt.Errorf("op: %w", tc.err))
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}
