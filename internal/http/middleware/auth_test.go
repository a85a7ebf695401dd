package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcite/integrity-engine/internal/data/repos/testutil"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/ctxutil"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	userID := uuid.New()
	var got *domain.Principal
	r := gin.New()
	r.Use(NewAuthMiddleware(testutil.Logger(t), testSecret).RequireAuth())
	r.GET("/probe", func(c *gin.Context) {
		got = ctxutil.PrincipalFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  userID.String(),
		"role": "lecturer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, domain.RoleLecturer, got.Role)
	assert.True(t, got.IsLecturer())
}

func TestRequireAuthRejections(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewAuthMiddleware(testutil.Logger(t), testSecret).RequireAuth())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := map[string]string{
		"missing token": "",
		"wrong secret": signToken(t, "other-secret", jwt.MapClaims{
			"sub": uuid.NewString(), "role": "student",
		}),
		"expired": signToken(t, testSecret, jwt.MapClaims{
			"sub": uuid.NewString(), "role": "student",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject": signToken(t, testSecret, jwt.MapClaims{
			"role": "student",
		}),
		"sub not a uuid": signToken(t, testSecret, jwt.MapClaims{
			"sub": "user-42", "role": "student",
		}),
		"unknown role": signToken(t, testSecret, jwt.MapClaims{
			"sub": uuid.NewString(), "role": "admin",
		}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewAuthMiddleware(testutil.Logger(t), testSecret).RequireAuth())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": uuid.NewString(), "role": "student",
	})
	req := httptest.NewRequest(http.MethodGet, "/probe?token="+token, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
